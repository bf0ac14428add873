package core

// MemoryStore persists long-lived conversational memory outside the session
// event log and answers relevance queries over it. How Search ranks is up to
// the implementation; keyword matching and embedding similarity both fit
// behind this interface.
//
// Get and Put move whole state snapshots, Store and Delete manage individual
// snippets, and Search retrieves the snippets most relevant to a query.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}

// SearchResult is one memory snippet returned by MemoryStore.Search.
type SearchResult struct {
	// ID identifies the snippet for later Delete calls.
	ID string
	// Content is the stored text.
	Content string
	// Score is the implementation's relevance ranking, higher meaning
	// more relevant. Scores are only comparable within one Search call.
	Score float64
	// Metadata carries whatever the writer attached at Store time.
	Metadata map[string]any
}
