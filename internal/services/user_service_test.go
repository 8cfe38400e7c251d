package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

func TestSignupAndLogin(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, "s3cret", time.Hour, nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupRequest{Username: " alice ", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "pw", u.PasswordHash)
	assert.False(t, u.Admin)

	_, err = svc.Signup(ctx, SignupRequest{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	tok, err := svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := svc.ParseToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, u.UUID, claims.UserID)
	assert.False(t, claims.Admin)
}

func TestSignup_Validation(t *testing.T) {
	svc := NewUserService(newMemUsers(), "s", 0, nil)
	_, err := svc.Signup(context.Background(), SignupRequest{Username: "bob"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Signup(context.Background(), SignupRequest{Password: "pw"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestLogin_Rejections(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, "s", time.Hour, nil)
	ctx := context.Background()
	_, err := svc.Signup(ctx, SignupRequest{Username: "carol", Password: "right"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "right")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	users.users["carol"].Disabled = true
	_, err = svc.Login(ctx, "carol", "right")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestParseToken_Rejections(t *testing.T) {
	svc := NewUserService(newMemUsers(), "s", time.Minute, nil)
	tok, err := svc.IssueToken(&models.User{UUID: "u1", Username: "dave", Admin: true})
	require.NoError(t, err)

	other := NewUserService(newMemUsers(), "different", time.Minute, nil)
	_, err = other.ParseToken(tok.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	later := NewUserService(newMemUsers(), "s", time.Minute, nil)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.ParseToken(tok.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	claims, err := svc.ParseToken(tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.Admin)

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestEnsureDefaultUser(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, "s", time.Hour, nil)
	ctx := context.Background()
	def := DefaultUser{UUID: "00000000-0000-0000-0000-000000000000", Username: "admin", Email: "test@test.com", Name: "Admin", Password: "changeme"}

	require.NoError(t, svc.EnsureDefaultUser(ctx, def))
	require.NoError(t, svc.EnsureDefaultUser(ctx, def))
	require.Len(t, users.users, 1)
	assert.True(t, users.users["admin"].Admin)
	assert.Equal(t, def.UUID, users.users["admin"].UUID)

	_, err := svc.Login(ctx, "admin", "changeme")
	require.NoError(t, err)

	empty := newMemUsers()
	require.NoError(t, NewUserService(empty, "s", time.Hour, nil).EnsureDefaultUser(ctx, DefaultUser{Username: "admin"}))
	assert.Empty(t, empty.users)
}
