package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studiumlab/studium/internal/domain"
)

// QdrantIndex talks to Qdrant over its HTTP API. One Qdrant collection
// per module, chunk payloads carry filename and text.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewQdrantIndex(baseURL, apiKey string) *QdrantIndex {
	return &QdrantIndex{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type qdrantEnvelope struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (i *QdrantIndex) Upsert(ctx context.Context, moduleID string, chunks []domain.DocumentChunk) error {
	collection := CollectionName(moduleID)
	if err := i.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, map[string]any{
			"id":     c.ID,
			"vector": c.Embedding,
			"payload": map[string]any{
				"filename":    c.Filename,
				"text":        c.Content,
				"chunk_index": c.ChunkIndex,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	_, err := i.do(ctx, http.MethodPut, path, map[string]any{"points": points})
	return err
}

func (i *QdrantIndex) Search(ctx context.Context, moduleID string, embedding []float32, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 4
	}

	path := fmt.Sprintf("/collections/%s/points/search", CollectionName(moduleID))
	result, err := i.do(ctx, http.MethodPost, path, map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, err
	}

	var scored []struct {
		Score   float64       `json:"score"`
		Payload qdrantPayload `json:"payload"`
	}
	if err := json.Unmarshal(result, &scored); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed search result", err)
	}

	hits := make([]domain.SearchHit, 0, len(scored))
	for _, s := range scored {
		hits = append(hits, domain.SearchHit{
			Filename: s.Payload.filename(),
			Content:  s.Payload.text(),
			Score:    s.Score,
		})
	}
	return hits, nil
}

// qdrantPayload reads chunk payloads in both shapes found in live
// collections: the flat filename/text keys this service writes, and
// the nested metadata.filename/page_content keys written by earlier
// LangChain-based indexers.
type qdrantPayload struct {
	Filename    string `json:"filename"`
	Text        string `json:"text"`
	PageContent string `json:"page_content"`
	Metadata    struct {
		Filename string `json:"filename"`
	} `json:"metadata"`
}

func (p qdrantPayload) filename() string {
	if p.Filename != "" {
		return p.Filename
	}
	return p.Metadata.Filename
}

func (p qdrantPayload) text() string {
	if p.Text != "" {
		return p.Text
	}
	return p.PageContent
}

func (i *QdrantIndex) DeleteByFilename(ctx context.Context, moduleID, filename string) (int, error) {
	collection := CollectionName(moduleID)

	// Count first so the caller can report removals and 404 when the
	// document was never indexed.
	count, err := i.countByFilename(ctx, collection, filename)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	_, err = i.do(ctx, http.MethodPost, path, map[string]any{
		"filter": filenameFilter(filename),
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (i *QdrantIndex) CollectionExists(ctx context.Context, moduleID string) (bool, error) {
	path := fmt.Sprintf("/collections/%s/exists", CollectionName(moduleID))
	result, err := i.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	var exists struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(result, &exists); err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed exists result", err)
	}
	return exists.Exists, nil
}

func (i *QdrantIndex) ListDocuments(ctx context.Context, moduleID string) ([]domain.DocumentRef, error) {
	collection := CollectionName(moduleID)
	counts := map[string]int{}
	order := []string{}

	var offset json.RawMessage
	for {
		body := map[string]any{
			"limit":        256,
			"with_payload": []string{"filename", "metadata"},
			"with_vector":  false,
		}
		if offset != nil {
			body["offset"] = offset
		}

		result, err := i.do(ctx, http.MethodPost,
			fmt.Sprintf("/collections/%s/points/scroll", collection), body)
		if err != nil {
			return nil, err
		}

		var page struct {
			Points []struct {
				Payload qdrantPayload `json:"payload"`
			} `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		}
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed scroll result", err)
		}

		for _, p := range page.Points {
			filename := p.Payload.filename()
			if filename == "" {
				continue
			}
			if _, seen := counts[filename]; !seen {
				order = append(order, filename)
			}
			counts[filename]++
		}

		if len(page.NextPageOffset) == 0 || string(page.NextPageOffset) == "null" {
			break
		}
		offset = page.NextPageOffset
	}

	refs := make([]domain.DocumentRef, 0, len(order))
	for _, filename := range order {
		refs = append(refs, domain.DocumentRef{Filename: filename, ChunkCount: counts[filename]})
	}
	return refs, nil
}

func (i *QdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	exists, err := i.collectionPresent(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = i.do(ctx, http.MethodPut, "/collections/"+collection, map[string]any{
		"vectors": map[string]any{
			"size":     EmbeddingDim,
			"distance": "Cosine",
		},
	})
	return err
}

func (i *QdrantIndex) collectionPresent(ctx context.Context, collection string) (bool, error) {
	result, err := i.do(ctx, http.MethodGet, "/collections/"+collection+"/exists", nil)
	if err != nil {
		return false, err
	}
	var exists struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(result, &exists); err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed exists result", err)
	}
	return exists.Exists, nil
}

func (i *QdrantIndex) countByFilename(ctx context.Context, collection, filename string) (int, error) {
	result, err := i.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", collection),
		map[string]any{
			"filter": filenameFilter(filename),
			"exact":  true,
		})
	if err != nil {
		return 0, err
	}

	var count struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(result, &count); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed count result", err)
	}
	return count.Count, nil
}

// filenameFilter matches a document under either payload shape, so
// deletes and counts reach points indexed before the flat layout.
func filenameFilter(filename string) map[string]any {
	return map[string]any{
		"should": []map[string]any{
			{"key": "filename", "match": map[string]any{"value": filename}},
			{"key": "metadata.filename", "match": map[string]any{"value": filename}},
		},
	}
}

func (i *QdrantIndex) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant response read failed", err)
	}

	if resp.StatusCode >= 500 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable,
			fmt.Sprintf("qdrant returned status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable,
			fmt.Sprintf("qdrant rejected request with status %d: %s", resp.StatusCode, raw), nil)
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "qdrant returned malformed response", err)
	}
	return envelope.Result, nil
}
