package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/extract"
	"github.com/studiumlab/studium/internal/telemetry"
	"github.com/studiumlab/studium/internal/vector"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// UploadArchiver stores the raw uploaded file, for audit and re-indexing.
// Archival is best-effort and never blocks ingestion.
type UploadArchiver interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// TagResult reports what ingestion produced for one document.
type TagResult struct {
	Filename   string
	ChunkCount int
}

// IngestService turns uploaded documents into indexed vector chunks.
type IngestService struct {
	embedder EmbeddingClient
	index    vector.Index
	archiver UploadArchiver
	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
}

func NewIngestService(embedder EmbeddingClient, index vector.Index) *IngestService {
	return &IngestService{
		embedder: embedder,
		index:    index,
		uuidGen:  &DefaultUUIDGenerator{},
		chunkCfg: DefaultChunkConfig(),
	}
}

// WithArchiver enables raw-upload archival.
func (s *IngestService) WithArchiver(archiver UploadArchiver) *IngestService {
	s.archiver = archiver
	return s
}

// WithUUIDGen overrides ID generation, used in tests.
func (s *IngestService) WithUUIDGen(gen UUIDGenerator) *IngestService {
	s.uuidGen = gen
	return s
}

// TagDocument extracts, chunks, embeds and indexes one document into
// the module collection. Any failure leaves nothing half-indexed for
// this upload: chunks are written in one upsert at the end.
func (s *IngestService) TagDocument(ctx context.Context, moduleID, filename string, data []byte) (*TagResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.TagDocument", telemetry.SpanAttributes{
		ModuleID:  moduleID,
		Filename:  filename,
		Operation: "tag",
	})
	defer span.End()

	if moduleID == "" || filename == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if len(data) == 0 {
		return nil, domain.ErrNoContent
	}

	text, err := extract.Text(filename, data)
	if err != nil {
		return nil, err
	}

	pieces := ChunkText(text, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, domain.ErrNoContent
	}

	embeddings, err := s.embedder.GenerateEmbeddings(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", filename, err)
	}

	now := time.Now().UTC()
	chunks := make([]domain.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, domain.DocumentChunk{
			ID:         s.uuidGen.NewString(),
			ModuleID:   moduleID,
			Filename:   filename,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		})
	}

	// Re-tagging a file replaces its previous chunks.
	if _, err := s.index.DeleteByFilename(ctx, moduleID, filename); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, moduleID, chunks); err != nil {
		return nil, err
	}

	if s.archiver != nil {
		key := fmt.Sprintf("modules/%s/%s", moduleID, filename)
		if err := s.archiver.Store(ctx, key, data, ""); err != nil {
			log.Printf("ingest: archival of %s failed: %v", key, err)
		}
	}

	return &TagResult{Filename: filename, ChunkCount: len(chunks)}, nil
}

// UntagDocument removes every chunk of a document from the module
// collection and reports how many were removed.
func (s *IngestService) UntagDocument(ctx context.Context, moduleID, filename string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.UntagDocument", telemetry.SpanAttributes{
		ModuleID:  moduleID,
		Filename:  filename,
		Operation: "untag",
	})
	defer span.End()

	if moduleID == "" || filename == "" {
		return 0, domain.ErrMissingRequiredField
	}

	removed, err := s.index.DeleteByFilename(ctx, moduleID, filename)
	if err != nil {
		return 0, err
	}
	// Untagging is idempotent: removing a document that was never
	// indexed succeeds with zero removals.
	if removed == 0 {
		log.Printf("ingest: untag of %s in module %s matched no chunks", filename, moduleID)
	}

	if s.archiver != nil {
		key := fmt.Sprintf("modules/%s/%s", moduleID, filename)
		if err := s.archiver.Delete(ctx, key); err != nil {
			log.Printf("ingest: archive cleanup of %s failed: %v", key, err)
		}
	}

	return removed, nil
}

// ListDocuments enumerates indexed documents for a module. Index
// failures degrade to an empty listing so the settings page stays up
// when the index is down.
func (s *IngestService) ListDocuments(ctx context.Context, moduleID string) []domain.DocumentRef {
	refs, err := s.index.ListDocuments(ctx, moduleID)
	if err != nil {
		log.Printf("ingest: listing documents for module %s failed: %v", moduleID, err)
		return []domain.DocumentRef{}
	}
	if refs == nil {
		refs = []domain.DocumentRef{}
	}
	return refs
}
