package vector

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/studiumlab/studium/internal/domain"
)

// PgvectorIndex keeps chunks in the document_chunks table and searches
// them with pgvector cosine distance. The module ID is the collection
// key, there is no collection object to create.
type PgvectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

func (i *PgvectorIndex) Upsert(ctx context.Context, moduleID string, chunks []domain.DocumentChunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := i.pool.Exec(ctx,
			`INSERT INTO document_chunks (id, module_id, filename, chunk_index, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			c.ID, moduleID, c.Filename, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), createdAt,
		)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "pgvector upsert failed", err)
		}
	}
	return nil
}

func (i *PgvectorIndex) Search(ctx context.Context, moduleID string, embedding []float32, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 4
	}

	rows, err := i.pool.Query(ctx,
		`SELECT filename, content, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE module_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), moduleID, limit,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "pgvector search failed", err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var h domain.SearchHit
		if err := rows.Scan(&h.Filename, &h.Content, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (i *PgvectorIndex) DeleteByFilename(ctx context.Context, moduleID, filename string) (int, error) {
	cmdTag, err := i.pool.Exec(ctx,
		`DELETE FROM document_chunks WHERE module_id = $1 AND filename = $2`,
		moduleID, filename,
	)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "pgvector delete failed", err)
	}
	return int(cmdTag.RowsAffected()), nil
}

func (i *PgvectorIndex) CollectionExists(ctx context.Context, moduleID string) (bool, error) {
	var exists bool
	err := i.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_chunks WHERE module_id = $1)`,
		moduleID,
	).Scan(&exists)
	if err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "pgvector lookup failed", err)
	}
	return exists, nil
}

func (i *PgvectorIndex) ListDocuments(ctx context.Context, moduleID string) ([]domain.DocumentRef, error) {
	rows, err := i.pool.Query(ctx,
		`SELECT filename, COUNT(*) FROM document_chunks
		 WHERE module_id = $1 GROUP BY filename ORDER BY filename`,
		moduleID,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "pgvector listing failed", err)
	}
	defer rows.Close()

	var refs []domain.DocumentRef
	for rows.Next() {
		var ref domain.DocumentRef
		if err := rows.Scan(&ref.Filename, &ref.ChunkCount); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
