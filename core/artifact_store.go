package core

// ArtifactStore persists binary artifacts keyed by session and artifact id.
// Saving under an existing id overwrites. Implementations must be safe for
// concurrent use; a single runner invocation can touch the store from
// several tool goroutines at once.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}
