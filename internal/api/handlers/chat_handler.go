package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

type ChatHandler struct {
	asker Asker
	log   *logger.Logger
}

func NewChatHandler(asker Asker, log *logger.Logger) *ChatHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatHandler{asker: asker, log: log.With("handler", "chat")}
}

type ChatRequest struct {
	Question string `json:"question"`
}

// Sources answers ?question= and returns the cited document hierarchies.
func (h *ChatHandler) Sources(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, r.URL.Query().Get("question"))
}

func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.answer(w, r, req.Question)
}

func (h *ChatHandler) answer(w http.ResponseWriter, r *http.Request, question string) {
	ans, err := h.asker.Ask(r.Context(), question)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
