package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studiumlab/studium/internal/domain"
)

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Store(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockArchiver) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newIngestFixture() (*IngestService, *MockEmbedder, *MockVectorIndex) {
	embedder := new(MockEmbedder)
	index := new(MockVectorIndex)
	svc := NewIngestService(embedder, index).
		WithUUIDGen(&fixedUUIDGenerator{ids: []string{"c-1", "c-2", "c-3", "c-4"}})
	return svc, embedder, index
}

func TestTagDocument_IndexesChunks(t *testing.T) {
	svc, embedder, index := newIngestFixture()

	embedder.On("GenerateEmbeddings", mock.Anything, []string{"Recursion is a function calling itself."}).
		Return([][]float32{{0.1, 0.2}}, nil)
	index.On("DeleteByFilename", mock.Anything, "mod-1", "notes.txt").Return(0, nil)
	index.On("Upsert", mock.Anything, "mod-1", mock.MatchedBy(func(chunks []domain.DocumentChunk) bool {
		return len(chunks) == 1 &&
			chunks[0].ModuleID == "mod-1" &&
			chunks[0].Filename == "notes.txt" &&
			chunks[0].ChunkIndex == 0 &&
			chunks[0].Content == "Recursion is a function calling itself."
	})).Return(nil)

	result, err := svc.TagDocument(context.Background(), "mod-1", "notes.txt",
		[]byte("Recursion is a function calling itself."))

	require.NoError(t, err)
	assert.Equal(t, "notes.txt", result.Filename)
	assert.Equal(t, 1, result.ChunkCount)
	index.AssertExpectations(t)
}

func TestTagDocument_ReplacesPreviousChunks(t *testing.T) {
	svc, embedder, index := newIngestFixture()

	embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	// Re-tagging first clears the old chunks of the same file.
	index.On("DeleteByFilename", mock.Anything, "mod-1", "notes.txt").Return(3, nil)
	index.On("Upsert", mock.Anything, "mod-1", mock.Anything).Return(nil)

	_, err := svc.TagDocument(context.Background(), "mod-1", "notes.txt", []byte("updated content"))

	require.NoError(t, err)
	index.AssertCalled(t, "DeleteByFilename", mock.Anything, "mod-1", "notes.txt")
}

func TestTagDocument_UnsupportedFormat(t *testing.T) {
	svc, _, _ := newIngestFixture()

	_, err := svc.TagDocument(context.Background(), "mod-1", "image.png", []byte{0x89, 0x50})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestTagDocument_EmptyDocument(t *testing.T) {
	svc, _, _ := newIngestFixture()

	_, err := svc.TagDocument(context.Background(), "mod-1", "empty.txt", []byte("   \n "))

	assert.ErrorIs(t, err, domain.ErrNoContent)
}

func TestTagDocument_EmbeddingFailureAborts(t *testing.T) {
	svc, embedder, index := newIngestFixture()

	embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return(nil, domain.ErrUpstreamUnavailable)

	_, err := svc.TagDocument(context.Background(), "mod-1", "notes.txt", []byte("content"))

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestTagDocument_IndexFailureIsHard(t *testing.T) {
	svc, embedder, index := newIngestFixture()

	embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	index.On("DeleteByFilename", mock.Anything, "mod-1", "notes.txt").Return(0, nil)
	index.On("Upsert", mock.Anything, "mod-1", mock.Anything).
		Return(domain.ErrIndexUnavailable)

	_, err := svc.TagDocument(context.Background(), "mod-1", "notes.txt", []byte("content"))

	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestTagDocument_ArchivalFailureDoesNotBlock(t *testing.T) {
	svc, embedder, index := newIngestFixture()
	archiver := new(MockArchiver)
	svc = svc.WithArchiver(archiver)

	embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	index.On("DeleteByFilename", mock.Anything, "mod-1", "notes.txt").Return(0, nil)
	index.On("Upsert", mock.Anything, "mod-1", mock.Anything).Return(nil)
	archiver.On("Store", mock.Anything, "modules/mod-1/notes.txt", mock.Anything, "").
		Return(assert.AnError)

	result, err := svc.TagDocument(context.Background(), "mod-1", "notes.txt", []byte("content"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
	archiver.AssertExpectations(t)
}

func TestUntagDocument_ReportsRemovals(t *testing.T) {
	svc, _, index := newIngestFixture()

	index.On("DeleteByFilename", mock.Anything, "mod-1", "notes.txt").Return(4, nil)

	removed, err := svc.UntagDocument(context.Background(), "mod-1", "notes.txt")

	require.NoError(t, err)
	assert.Equal(t, 4, removed)
}

func TestUntagDocument_UnknownDocumentSucceeds(t *testing.T) {
	svc, _, index := newIngestFixture()

	index.On("DeleteByFilename", mock.Anything, "mod-1", "missing.txt").Return(0, nil)

	removed, err := svc.UntagDocument(context.Background(), "mod-1", "missing.txt")

	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestListDocuments_DegradesToEmpty(t *testing.T) {
	svc, _, index := newIngestFixture()

	index.On("ListDocuments", mock.Anything, "mod-1").
		Return(nil, domain.ErrIndexUnavailable)

	refs := svc.ListDocuments(context.Background(), "mod-1")

	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}
