package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	middleware "github.com/markdave123-py/contexta-graph/internal/api/middlewares"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
	"github.com/markdave123-py/contexta-graph/internal/services"
)

const maxUploadSize = 32 << 20

type Documents interface {
	AddFromURL(ctx context.Context, username string, req services.AddDocumentRequest) (*services.AddDocumentResult, error)
	Upload(ctx context.Context, username string, req services.UploadRequest) (*services.AddDocumentResult, error)
	List(ctx context.Context, limit int) ([]models.Document, error)
}

type DocumentHandler struct {
	docs Documents
	log  *logger.Logger
}

func NewDocumentHandler(docs Documents, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentHandler{docs: docs, log: log.With("handler", "documents")}
}

// AddDocument fetches a URL and queues it for ingestion.
func (h *DocumentHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req services.AddDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.docs.AddFromURL(r.Context(), username(r), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// UploadDocument handles a multipart "file" upload with an optional "note".
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: invalid file: %v", models.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		writeError(w, h.log, err)
		return
	}

	res, err := h.docs.Upload(r.Context(), username(r), services.UploadRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Note:        r.FormValue("note"),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.log, fmt.Errorf("%w: limit must be a non-negative integer", models.ErrInvalidInput))
			return
		}
		limit = n
	}
	docs, err := h.docs.List(r.Context(), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func username(r *http.Request) string {
	if c, ok := middleware.ClaimsFrom(r.Context()); ok {
		return c.Subject
	}
	return ""
}
