package chat

// Filter is a backend channel filter expression, e.g.
// {"members": {"$in": ["alice"]}, "type": "messaging"}.
type Filter map[string]any

// SortOption orders channel query results by one field.
// Direction is 1 for ascending and -1 for descending.
type SortOption struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// Sort is an ordered list of sort options.
type Sort []SortOption
