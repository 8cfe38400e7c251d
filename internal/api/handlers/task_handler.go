package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
	"github.com/markdave123-py/contexta-graph/internal/services"
)

type Tasks interface {
	Ingest(ctx context.Context, req models.IngestRequest) (string, error)
	ProcessDocuments(ctx context.Context, req services.ProcessDocumentsRequest) ([]string, error)
	Status(ctx context.Context, id string) (*models.TaskInfo, error)
	Purge(ctx context.Context) (int, error)
	QueueDepth(ctx context.Context) (*models.QueueDepth, error)
}

type TaskHandler struct {
	tasks Tasks
	log   *logger.Logger
}

func NewTaskHandler(tasks Tasks, log *logger.Logger) *TaskHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &TaskHandler{tasks: tasks, log: log.With("handler", "tasks")}
}

func (h *TaskHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := h.tasks.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": id})
}

func (h *TaskHandler) ProcessDocuments(w http.ResponseWriter, r *http.Request) {
	var req services.ProcessDocumentsRequest
	// An empty body means no limit and no derived content.
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.log, err)
		return
	}
	ids, err := h.tasks.ProcessDocuments(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("Processing %d documents", len(ids)),
		"taskIds": ids,
	})
}

// Status never fails for unknown ids; they come back as NOT_FOUND.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	info, err := h.tasks.Status(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *TaskHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.tasks.Purge(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Purged %d tasks from the queue", n),
		"purged":  n,
	})
}

func (h *TaskHandler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.tasks.QueueDepth(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, depth)
}
