package vector

import "marketlens/internal/research"

// Record is one page chunk ready for insertion.
type Record struct {
	ID     string
	Chunk  research.DocumentChunk
	Vector []float32
}

// Match is a stored chunk returned by a similarity query, nearest first.
type Match struct {
	Chunk    research.DocumentChunk
	Distance float32
}
