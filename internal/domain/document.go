package domain

import "time"

// DocumentChunk represents one embedded segment of an uploaded document
type DocumentChunk struct {
	ID         string
	ModuleID   string
	Filename   string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// DocumentRef summarizes one indexed document inside a module collection
type DocumentRef struct {
	Filename   string
	ChunkCount int
}

// SearchHit is one scored retrieval result from the vector index
type SearchHit struct {
	Filename string
	Content  string
	Score    float64
}
