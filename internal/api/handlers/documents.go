package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/studiumlab/studium/internal/api"
	"github.com/studiumlab/studium/internal/service"
)

// maxUploadBytes caps an individual document upload.
const maxUploadBytes = 32 << 20

type IngestService interface {
	TagDocument(ctx context.Context, moduleID, filename string, data []byte) (*service.TagResult, error)
	UntagDocument(ctx context.Context, moduleID, filename string) (int, error)
}

type DocumentHandler struct {
	svc IngestService
}

func NewDocumentHandler(svc IngestService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type TagDocumentResponse struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

type UntagDocumentRequest struct {
	ModuleID string `json:"module_id"`
	Filename string `json:"filename"`
}

type UntagDocumentResponse struct {
	Removed int `json:"removed"`
}

// Tag ingests one uploaded document into a module's collection.
// Expects multipart form data with a "module_id" field and a "file".
func (h *DocumentHandler) Tag(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	moduleID := r.FormValue("module_id")
	if moduleID == "" {
		api.Error(w, http.StatusBadRequest, "module_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if len(data) > maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "uploaded file is too large")
		return
	}

	result, err := h.svc.TagDocument(r.Context(), moduleID, header.Filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, TagDocumentResponse{
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
	})
}

// Untag removes a document's chunks from a module's collection.
func (h *DocumentHandler) Untag(w http.ResponseWriter, r *http.Request) {
	var req UntagDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ModuleID == "" {
		api.Error(w, http.StatusBadRequest, "module_id is required")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	removed, err := h.svc.UntagDocument(r.Context(), req.ModuleID, req.Filename)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, UntagDocumentResponse{Removed: removed})
}
