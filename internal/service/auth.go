package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"domo/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 12 * time.Hour
	tokenSubject    = "dashboard"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
	ErrAuthDisabled    = errors.New("dashboard sign-in is not configured")
)

// DashboardAuth guards the mutating dashboard routes. There are no user
// accounts: one bcrypt password hash from the config unlocks the dashboard
// and a signed JWT proves it on later requests.
type DashboardAuth struct {
	passwordHash string
	signingKey   []byte
	ttl          time.Duration
	clock        clock.Clock
}

func NewDashboardAuth(passwordHash, signingKey string, ttl time.Duration, clk clock.Clock) *DashboardAuth {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &DashboardAuth{passwordHash: passwordHash, signingKey: []byte(signingKey), ttl: ttl, clock: clk}
}

// Enabled reports whether sign-in is required.
func (a *DashboardAuth) Enabled() bool {
	return a != nil && a.passwordHash != ""
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken checks password and returns a signed token.
func (a *DashboardAuth) GenerateToken(password string) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	if err := verifyPassword(a.passwordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	now := a.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(a.signingKey)
}

// ParseToken validates a token issued by GenerateToken.
func (a *DashboardAuth) ParseToken(accessToken string) error {
	if !a.Enabled() {
		return ErrAuthDisabled
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithSubject(tokenSubject),
	)
	token, err := parser.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashPassword produces the value for dashboard.password_hash.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
