package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

// Claims is the JWT payload. Subject carries the username.
type Claims struct {
	UserID string `json:"uid"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Token is the login response.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DefaultUser is the account seeded at startup.
type DefaultUser struct {
	UUID     string
	Username string
	Email    string
	Name     string
	Password string
}

type UserService struct {
	users  core.UserStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewUserService(users core.UserStore, secret string, ttl time.Duration, log *logger.Logger) *UserService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UserService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log.With("component", "UserService"),
		now:    time.Now,
	}
}

func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", models.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	user := &models.User{
		UUID:         uuid.NewString(),
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		DateCreated:  s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("User created", "username", user.Username)
	return user, nil
}

// Login checks the password and issues a bearer token. Unknown users, wrong
// passwords and disabled accounts are all unauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: incorrect username or password", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: incorrect username or password", models.ErrUnauthorized)
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: inactive user", models.ErrUnauthorized)
	}
	return s.IssueToken(user)
}

func (s *UserService) IssueToken(user *models.User) (*Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: user.UUID,
		Admin:  user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: expires.UTC()}, nil
}

// ParseToken validates signature, algorithm and expiry.
func (s *UserService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}
	return claims, nil
}

// EnsureDefaultUser creates the seeded admin unless it already exists. An
// empty password skips seeding.
func (s *UserService) EnsureDefaultUser(ctx context.Context, def DefaultUser) error {
	if def.Username == "" || def.Password == "" {
		s.log.Warn("Default user not configured; skipping seed")
		return nil
	}
	_, err := s.users.GetUserByUsername(ctx, def.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("look up default user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(def.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	id := def.UUID
	if id == "" {
		id = uuid.NewString()
	}
	user := &models.User{
		UUID:         id,
		Username:     def.Username,
		Email:        def.Email,
		Name:         def.Name,
		PasswordHash: string(hash),
		Admin:        true,
		DateCreated:  s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create default user: %w", err)
	}
	s.log.Info("Default user created", "username", def.Username)
	return nil
}
