// Package auth issues and validates bearer tokens and gates HTTP routes by
// role.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/user"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInactiveUser       = errors.New("auth: user is inactive")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
)

// Claims is the JWT payload. Subject carries the user ID.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service authenticates users against the store.
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a Service signing HS256 tokens with secret.
func NewService(db *gorm.DB, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{db: db, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login checks email and password and issues a token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(email, password string) (*Token, *models.User, error) {
	u, err := user.GetByEmail(s.db, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("auth: login: %w", err)
	}
	if !user.CheckPassword(u, password) {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, nil, ErrInactiveUser
	}
	tok, err := s.Issue(u)
	if err != nil {
		return nil, nil, err
	}
	return tok, u, nil
}

// Issue signs a token for u.
func (s *Service) Issue(u *models.User) (*Token, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Authenticate validates a token and resolves the caller. The role comes from
// the store, so role changes and deactivation take effect immediately.
func (s *Service) Authenticate(tokenString string) (*models.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	u, err := user.Get(s.db, uint(id))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", ErrInvalidToken, id)
		}
		return nil, fmt.Errorf("auth: load user %d: %w", id, err)
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}
	return &models.Actor{UserID: u.ID, Role: u.Role}, nil
}
