package handlers

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
	"github.com/markdave123-py/contexta-graph/internal/services"
)

type Accounts interface {
	Signup(ctx context.Context, req services.SignupRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.Token, error)
}

type AuthHandler struct {
	accounts Accounts
	log      *logger.Logger
}

func NewAuthHandler(accounts Accounts, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{accounts: accounts, log: log.With("handler", "auth")}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	user, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login accepts an OAuth2 password form or a JSON body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			writeError(w, h.log, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
			return
		}
		req.Username, req.Password = r.PostFormValue("username"), r.PostFormValue("password")
	default:
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.log, err)
			return
		}
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, h.log, fmt.Errorf("%w: username and password are required", models.ErrInvalidInput))
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
