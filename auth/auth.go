package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Sessions are short-lived; LAN clients re-login daily.
const sessionLifetime = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// Claims is the JWT payload carried by a staff session token.
type Claims struct {
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies staff session tokens. Logout is tracked with an
// in-memory denylist; entries fall out once the token would have expired
// anyway.
type Service struct {
	secret []byte

	mu       sync.Mutex
	denylist map[string]time.Time // token ID -> expiry
}

// NewService creates a session service with the given signing secret.
func NewService(secret string) (*Service, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	return &Service{
		secret:   []byte(secret),
		denylist: make(map[string]time.Time),
	}, nil
}

// HashPassword returns the bcrypt hash for a password.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password against its stored hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken signs a session token for an authenticated account.
func (s *Service) IssueToken(accountID, username string, role Role) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Username:  username,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", accountID, now.UnixNano()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a session token, rejecting revoked ones.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.denylist[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates a token until its natural expiry (logout).
func (s *Service) Revoke(claims *Claims) {
	expiry := time.Now().Add(sessionLifetime)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.denylist[claims.ID] = expiry

	// Drop entries for tokens that have expired on their own.
	now := time.Now()
	for id, exp := range s.denylist {
		if exp.Before(now) {
			delete(s.denylist, id)
		}
	}
}
