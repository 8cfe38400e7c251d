package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/api/handlers"
	"github.com/markdave123-py/contexta-graph/internal/models"
	"github.com/markdave123-py/contexta-graph/internal/services"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return models.ErrInvalidInput
	}
	m.users[u.Username] = *u
	return nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

type nopTasks struct{ purged int }

func (n *nopTasks) Ingest(context.Context, models.IngestRequest) (string, error) { return "job-1", nil }
func (n *nopTasks) ProcessDocuments(context.Context, services.ProcessDocumentsRequest) ([]string, error) {
	return nil, nil
}
func (n *nopTasks) Status(_ context.Context, id string) (*models.TaskInfo, error) {
	return &models.TaskInfo{TaskID: id, Status: models.StatusNotFound}, nil
}
func (n *nopTasks) Purge(context.Context) (int, error) {
	n.purged++
	return 0, nil
}
func (n *nopTasks) QueueDepth(context.Context) (*models.QueueDepth, error) {
	return &models.QueueDepth{Ready: 2}, nil
}

type nopDocs struct{}

func (nopDocs) AddFromURL(context.Context, string, services.AddDocumentRequest) (*services.AddDocumentResult, error) {
	return &services.AddDocumentResult{}, nil
}
func (nopDocs) Upload(context.Context, string, services.UploadRequest) (*services.AddDocumentResult, error) {
	return &services.AddDocumentResult{}, nil
}
func (nopDocs) List(context.Context, int) ([]models.Document, error) { return nil, nil }

type nopAsker struct{}

func (nopAsker) Ask(context.Context, string) (*models.Answer, error) { return &models.Answer{}, nil }

func newTestRouter(t *testing.T) (http.Handler, *services.UserService, *nopTasks) {
	t.Helper()
	users := services.NewUserService(&memUsers{users: map[string]models.User{}}, "test-secret", time.Hour, nil)
	require.NoError(t, users.EnsureDefaultUser(context.Background(), services.DefaultUser{Username: "admin", Password: "adminpw"}))
	tasks := &nopTasks{}
	h := Handlers{
		Auth:      handlers.NewAuthHandler(users, nil),
		Documents: handlers.NewDocumentHandler(nopDocs{}, nil),
		Tasks:     handlers.NewTaskHandler(tasks, nil),
		Chat:      handlers.NewChatHandler(nopAsker{}, nil),
		Tokens:    users,
	}
	return NewRouter(h, []string{"http://localhost:5173"}, 5*time.Second), users, tasks
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, users *services.UserService, username, password string) string {
	t.Helper()
	tok, err := users.Login(context.Background(), username, password)
	require.NoError(t, err)
	return tok.AccessToken
}

func TestRouter_PublicRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")

	rec = do(t, r, http.MethodGet, "/api/tasks/abc", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NOT_FOUND"`)
}

func TestRouter_SignupThenToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/signup", `{"username":"erin","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/token", `{"username":"erin","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	r, users, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/tasks/ingest", `{"text":"x","documentId":"d"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/tasks/ingest", `{"text":"x","documentId":"d"}`, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, users, "admin", "adminpw")
	rec = do(t, r, http.MethodPost, "/api/tasks/ingest", `{"text":"x","documentId":"d"}`, token)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/chat/sources?question=hi", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PurgeIsAdminOnly(t *testing.T) {
	r, users, tasks := newTestRouter(t)
	_, err := users.Signup(context.Background(), services.SignupRequest{Username: "frank", Password: "pw"})
	require.NoError(t, err)

	rec := do(t, r, http.MethodPost, "/api/tasks/purge", "", login(t, users, "frank", "pw"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, tasks.purged)

	rec = do(t, r, http.MethodPost, "/api/tasks/purge", "", login(t, users, "admin", "adminpw"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, tasks.purged)

	rec = do(t, r, http.MethodGet, "/api/tasks/queue", "", login(t, users, "frank", "pw"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/tasks/queue", "", login(t, users, "admin", "adminpw"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":2`)
}
