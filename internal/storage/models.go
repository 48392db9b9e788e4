package storage

import "time"

// SourceRecord tracks a corpus file that has been ingested as a document.
type SourceRecord struct {
	DocumentID string
	RelPath    string // Relative path from the corpus root, forward slashes
	Hash       string // SHA256 hex string of file content
	ChunkCount int
	UpdatedAt  time.Time
}
