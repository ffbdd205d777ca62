package service

import (
	"errors"
	"strings"
	"time"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates the single configured operator account.
type AuthService struct {
	email        string
	passwordHash string
	jwtSecret    string
	ttl          time.Duration
}

func NewAuthService(email, passwordHash, jwtSecret string, ttl time.Duration) *AuthService {
	return &AuthService{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		ttl:          ttl,
	}
}

type AuthResult struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	// The hash is checked even for an unknown email so both paths cost the same.
	ok := auth.CheckPassword(password, s.passwordHash)
	if !ok || strings.ToLower(strings.TrimSpace(email)) != s.email {
		return nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateToken(s.jwtSecret, s.email, auth.RoleOperator, s.ttl)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		Email:     s.email,
		Role:      auth.RoleOperator,
		ExpiresAt: time.Now().Add(s.ttl).UTC(),
	}, nil
}
