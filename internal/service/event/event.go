// Package event applies realtime chat events to the local cache.
package event

import (
	"context"
	"sync"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// EventService applies live events through the router, strictly one at a
// time and in delivery order.
type EventService struct {
	router *Router
	log    waLog.Logger

	mu sync.Mutex
}

// NewEventService creates a new EventService.
func NewEventService(router *Router, log waLog.Logger) *EventService {
	return &EventService{
		router: router,
		log:    log.Sub("EventService"),
	}
}

// Apply writes one event. Storage failures are logged and returned; the
// event is not retried.
func (s *EventService) Apply(ctx context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.router.Apply(ctx, evt, true); err != nil {
		s.log.Errorf("Failed to apply %T: %v", evt, err)
		return err
	}
	return nil
}
