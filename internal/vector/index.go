package vector

import (
	"context"
	"fmt"

	"github.com/studiumlab/studium/internal/domain"
)

// EmbeddingDim is the dimensionality of the embedding model output.
const EmbeddingDim = 1536

// Index stores and searches document chunks grouped per module
// collection. Implementations classify transport and availability
// failures as domain.ErrIndexUnavailable so callers can degrade.
type Index interface {
	// Upsert writes chunks into the module collection, creating the
	// collection if needed.
	Upsert(ctx context.Context, moduleID string, chunks []domain.DocumentChunk) error

	// Search returns the best matching chunks for the query embedding,
	// ordered by descending score.
	Search(ctx context.Context, moduleID string, embedding []float32, limit int) ([]domain.SearchHit, error)

	// DeleteByFilename removes every chunk of a document and reports
	// how many were removed.
	DeleteByFilename(ctx context.Context, moduleID, filename string) (int, error)

	// CollectionExists reports whether the module has any indexed
	// content at all.
	CollectionExists(ctx context.Context, moduleID string) (bool, error)

	// ListDocuments enumerates the distinct documents in the module
	// collection.
	ListDocuments(ctx context.Context, moduleID string) ([]domain.DocumentRef, error)
}

// CollectionName maps a module ID to its collection name.
func CollectionName(moduleID string) string {
	return fmt.Sprintf("module_%s", moduleID)
}
