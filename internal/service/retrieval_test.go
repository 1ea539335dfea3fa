package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/websearch"
)

func newRetrievalFixture() (*RetrievalService, *MockEmbedder, *MockVectorIndex, *MockSearcher) {
	embedder := new(MockEmbedder)
	index := new(MockVectorIndex)
	searcher := new(MockSearcher)
	return NewRetrievalService(embedder, index, searcher), embedder, index, searcher
}

func TestRetrieve_NoCollection_SearchDisabled_Refuses(t *testing.T) {
	svc, embedder, index, _ := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(false, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", false)

	require.NoError(t, err)
	assert.Equal(t, StateNoCollection, result.State)
	assert.True(t, result.Refused)
	embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_NoCollection_SearchEnabled_WebOnly(t *testing.T) {
	svc, _, index, searcher := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(false, nil)
	searcher.On("Search", mock.Anything, "query", webResultLimit).Return([]websearch.Result{
		{Title: "Recursion", Link: "https://example.com", Snippet: "calls itself"},
	}, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", true)

	require.NoError(t, err)
	assert.Equal(t, StateNoCollection, result.State)
	assert.False(t, result.Refused)
	assert.Len(t, result.WebResults, 1)
}

func TestRetrieve_NoMatch_SearchDisabled_Refuses(t *testing.T) {
	svc, embedder, index, _ := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(true, nil)
	embedder.On("GenerateEmbedding", mock.Anything, "query").Return([]float32{0.1}, nil)
	// Below threshold hits do not count as matches.
	index.On("Search", mock.Anything, "mod-1", []float32{0.1}, DefaultTopK).
		Return([]domain.SearchHit{{Filename: "a.pdf", Content: "x", Score: 0.1}}, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", false)

	require.NoError(t, err)
	assert.Equal(t, StateCollectionNoMatch, result.State)
	assert.True(t, result.Refused)
	assert.Empty(t, result.Hits)
}

func TestRetrieve_Match_IncludesHits(t *testing.T) {
	svc, embedder, index, searcher := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(true, nil)
	embedder.On("GenerateEmbedding", mock.Anything, "query").Return([]float32{0.1}, nil)
	index.On("Search", mock.Anything, "mod-1", []float32{0.1}, DefaultTopK).
		Return([]domain.SearchHit{
			{Filename: "a.pdf", Content: "relevant", Score: 0.8},
			{Filename: "b.pdf", Content: "noise", Score: 0.05},
		}, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", false)

	require.NoError(t, err)
	assert.Equal(t, StateCollectionMatch, result.State)
	assert.False(t, result.Refused)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "a.pdf", result.Hits[0].Filename)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_Match_SearchEnabled_Blends(t *testing.T) {
	svc, embedder, index, searcher := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(true, nil)
	embedder.On("GenerateEmbedding", mock.Anything, "query").Return([]float32{0.1}, nil)
	index.On("Search", mock.Anything, "mod-1", []float32{0.1}, DefaultTopK).
		Return([]domain.SearchHit{{Filename: "a.pdf", Content: "relevant", Score: 0.8}}, nil)
	searcher.On("Search", mock.Anything, "query", webResultLimit).Return([]websearch.Result{
		{Title: "Extra", Link: "https://example.com", Snippet: "more"},
	}, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", true)

	require.NoError(t, err)
	assert.Equal(t, StateCollectionMatch, result.State)
	assert.Len(t, result.Hits, 1)
	assert.Len(t, result.WebResults, 1)
}

func TestRetrieve_IndexUnavailable_DegradesToNoCollection(t *testing.T) {
	svc, _, index, _ := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").
		Return(false, domain.ErrIndexUnavailable)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", false)

	require.NoError(t, err)
	assert.Equal(t, StateNoCollection, result.State)
	assert.True(t, result.Refused)
}

func TestRetrieve_SearchFailure_DegradesToNoCollection(t *testing.T) {
	svc, embedder, index, searcher := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(true, nil)
	embedder.On("GenerateEmbedding", mock.Anything, "query").Return([]float32{0.1}, nil)
	index.On("Search", mock.Anything, "mod-1", []float32{0.1}, DefaultTopK).
		Return(nil, domain.ErrIndexUnavailable)
	searcher.On("Search", mock.Anything, "query", webResultLimit).
		Return([]websearch.Result{{Title: "Web", Link: "l", Snippet: "s"}}, nil)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", true)

	require.NoError(t, err)
	assert.Equal(t, StateNoCollection, result.State)
	assert.False(t, result.Refused)
	assert.Len(t, result.WebResults, 1)
}

func TestRetrieve_WebSearchFailure_IsSoft(t *testing.T) {
	svc, _, index, searcher := newRetrievalFixture()

	index.On("CollectionExists", mock.Anything, "mod-1").Return(false, nil)
	searcher.On("Search", mock.Anything, "query", webResultLimit).
		Return(nil, assert.AnError)

	result, err := svc.Retrieve(context.Background(), "mod-1", "query", true)

	require.NoError(t, err)
	assert.False(t, result.Refused)
	assert.Empty(t, result.WebResults)
}

func TestSystemInstruction_DocOnlyDemandsVerbatimRefusal(t *testing.T) {
	result := &RetrievalResult{
		State: StateCollectionMatch,
		Hits:  []domain.SearchHit{{Filename: "a.pdf", Content: "x", Score: 0.9}},
	}

	instruction := result.SystemInstruction("Be concise.")

	assert.True(t, strings.HasPrefix(instruction, "System Context: Be concise."))
	assert.Contains(t, instruction, ScopeLimitMessage)
}

func TestContextBlock_RendersBothSections(t *testing.T) {
	result := &RetrievalResult{
		Hits:       []domain.SearchHit{{Filename: "a.pdf", Content: "chunk text", Score: 0.9}},
		WebResults: []websearch.Result{{Title: "T", Link: "https://x", Snippet: "S"}},
	}

	block := result.ContextBlock()

	assert.Contains(t, block, "Course material:")
	assert.Contains(t, block, "[a.pdf]")
	assert.Contains(t, block, "chunk text")
	assert.Contains(t, block, "Web results:")
	assert.Contains(t, block, "- T (https://x): S")
}
