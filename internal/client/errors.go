package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the addressed entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyApplied is returned when a mutation conflicts with state the
	// backend already holds, meaning the mutation has landed before.
	ErrAlreadyApplied = errors.New("mutation already applied")
	// ErrSyncWindowTooLarge is returned when missed events cannot be replayed.
	ErrSyncWindowTooLarge = errors.New("sync window too large")
)

// Backend error codes with client-side meaning.
const (
	CodeInputError   = 4
	CodeDoesNotExist = 16
)

// APIError is an error response from the backend.
type APIError struct {
	StatusCode int    `json:"StatusCode"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Is maps backend codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAlreadyApplied:
		return e.Code == CodeInputError
	case ErrNotFound:
		return e.Code == CodeDoesNotExist || e.StatusCode == http.StatusNotFound
	}
	return false
}
