package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/vector"
	"github.com/studiumlab/studium/internal/websearch"
)

// RetrievalState classifies what grounding material exists for a query.
type RetrievalState string

const (
	StateNoCollection      RetrievalState = "NO_COLLECTION"
	StateCollectionNoMatch RetrievalState = "COLLECTION_NO_MATCH"
	StateCollectionMatch   RetrievalState = "COLLECTION_MATCH"
)

// ScopeLimitMessage is the fixed refusal text streamed when no
// grounding material is available and internet search is disabled.
const ScopeLimitMessage = "I'm sorry, I can only answer questions about the material uploaded for this module. Please ask something related to the course documents, or enable internet search."

const (
	// DefaultScoreThreshold is the minimum similarity for a chunk to
	// count as a match.
	DefaultScoreThreshold = 0.30
	// DefaultTopK is how many chunks are retrieved per query.
	DefaultTopK = 4
	// webResultLimit is how many search snippets augment an answer.
	webResultLimit = 5
)

// RetrievalResult is the policy decision for one query.
type RetrievalResult struct {
	State      RetrievalState
	Refused    bool
	Hits       []domain.SearchHit
	WebResults []websearch.Result
}

// RetrievalService applies the scope-limiting policy: answer from the
// module collection, blend in live web search, or refuse.
type RetrievalService struct {
	embedder  EmbeddingClient
	index     vector.Index
	searcher  websearch.Searcher
	threshold float64
	topK      int
}

func NewRetrievalService(embedder EmbeddingClient, index vector.Index, searcher websearch.Searcher) *RetrievalService {
	return &RetrievalService{
		embedder:  embedder,
		index:     index,
		searcher:  searcher,
		threshold: DefaultScoreThreshold,
		topK:      DefaultTopK,
	}
}

// Retrieve decides how the query will be grounded. Index outages
// degrade to the no-collection state instead of failing the chat.
// Web-search failures are also soft: the snippets are simply absent.
func (s *RetrievalService) Retrieve(ctx context.Context, moduleID, query string, internetSearch bool) (*RetrievalResult, error) {
	exists, err := s.index.CollectionExists(ctx, moduleID)
	if err != nil {
		if isIndexUnavailable(err) {
			log.Printf("retrieval: index unavailable for module %s, degrading to no documents: %v", moduleID, err)
			exists = false
		} else {
			return nil, err
		}
	}

	if !exists {
		result := &RetrievalResult{State: StateNoCollection}
		if !internetSearch {
			result.Refused = true
			return result, nil
		}
		result.WebResults = s.searchWeb(ctx, query)
		return result, nil
	}

	hits, err := s.searchIndex(ctx, moduleID, query)
	if err != nil {
		if isIndexUnavailable(err) {
			log.Printf("retrieval: search failed for module %s, degrading to no documents: %v", moduleID, err)
			result := &RetrievalResult{State: StateNoCollection}
			if !internetSearch {
				result.Refused = true
				return result, nil
			}
			result.WebResults = s.searchWeb(ctx, query)
			return result, nil
		}
		return nil, err
	}

	if len(hits) == 0 {
		result := &RetrievalResult{State: StateCollectionNoMatch}
		if !internetSearch {
			result.Refused = true
			return result, nil
		}
		result.WebResults = s.searchWeb(ctx, query)
		return result, nil
	}

	result := &RetrievalResult{State: StateCollectionMatch, Hits: hits}
	if internetSearch {
		result.WebResults = s.searchWeb(ctx, query)
	}
	return result, nil
}

func (s *RetrievalService) searchIndex(ctx context.Context, moduleID, query string) ([]domain.SearchHit, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, moduleID, embedding, s.topK)
	if err != nil {
		return nil, err
	}

	matched := hits[:0]
	for _, h := range hits {
		if h.Score >= s.threshold {
			matched = append(matched, h)
		}
	}
	return matched, nil
}

func (s *RetrievalService) searchWeb(ctx context.Context, query string) []websearch.Result {
	if s.searcher == nil {
		return nil
	}
	results, err := s.searcher.Search(ctx, query, webResultLimit)
	if err != nil {
		log.Printf("retrieval: web search failed, answering without snippets: %v", err)
		return nil
	}
	return results
}

// SystemInstruction builds the system message for the decided state.
// Document-only mode tells the model to refuse outside-document
// questions; blended mode permits both sources and encourages citing.
func (r *RetrievalResult) SystemInstruction(systemPrompt string) string {
	var sb strings.Builder
	if systemPrompt != "" {
		sb.WriteString("System Context: ")
		sb.WriteString(systemPrompt)
		sb.WriteString("\n\n")
	}

	switch {
	case len(r.Hits) > 0 && len(r.WebResults) == 0:
		sb.WriteString("Answer using only the course material excerpts provided below. ")
		sb.WriteString("If the question cannot be answered from them, reply exactly: ")
		sb.WriteString(ScopeLimitMessage)
	case len(r.Hits) > 0 && len(r.WebResults) > 0:
		sb.WriteString("Answer using the course material excerpts and the web results provided below. ")
		sb.WriteString("Prefer the course material and cite web sources by their links when used.")
	case len(r.WebResults) > 0:
		sb.WriteString("Answer using the web results provided below, citing sources by their links.")
	}
	return sb.String()
}

// ContextBlock renders retrieved chunks and web snippets into the text
// appended to the user's question.
func (r *RetrievalResult) ContextBlock() string {
	if len(r.Hits) == 0 && len(r.WebResults) == 0 {
		return ""
	}

	var sb strings.Builder
	if len(r.Hits) > 0 {
		sb.WriteString("Course material:\n")
		for _, h := range r.Hits {
			sb.WriteString(fmt.Sprintf("[%s]\n%s\n\n", h.Filename, h.Content))
		}
	}
	if len(r.WebResults) > 0 {
		sb.WriteString("Web results:\n")
		for _, w := range r.WebResults {
			sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", w.Title, w.Link, w.Snippet))
		}
	}
	return strings.TrimSpace(sb.String())
}

func isIndexUnavailable(err error) bool {
	var derr *domain.DomainError
	return errors.As(err, &derr) && derr.Code == domain.ErrCodeIndexUnavailable
}
