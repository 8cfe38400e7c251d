package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/contexta-graph/internal/services"
)

type staticParser map[string]*services.Claims

func (p staticParser) ParseToken(raw string) (*services.Claims, error) {
	if c, ok := p[raw]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func claims(sub string, admin bool) *services.Claims {
	c := &services.Claims{Admin: admin}
	c.Subject = sub
	return c
}

func serve(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	parser := staticParser{"good": claims("alice", false)}
	var seen string
	h := JWTMiddleware(parser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		assert.True(t, ok)
		seen = c.Subject
	}))

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Basic abc").Code)
	rec := serve(h, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusOK, serve(h, "Bearer good").Code)
	assert.Equal(t, "alice", seen)
}

func TestAdminOnly(t *testing.T) {
	parser := staticParser{"user": claims("bob", false), "admin": claims("root", true)}
	h := JWTMiddleware(parser)(AdminOnly(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer user").Code)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer admin").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(AdminOnly(http.NotFoundHandler()), "").Code)
}
