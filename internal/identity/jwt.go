// Package identity labels a WebSocket connection with a human-readable
// identity, adapted from the teacher's authentication middleware but
// narrowed to exactly the role spec.md's non-goals leave open: a
// connection's identity is carried for logging and the /health session
// listing, never consulted to grant or deny a control-plane operation.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal identity payload this service recognizes. It
// deliberately carries no role or permission fields — there is nothing
// here for a Session to authorize against.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Manager issues and verifies connection-identity tokens.
type Manager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{secretKey: []byte(secretKey), tokenDuration: tokenDuration}
}

// Issue mints a token naming subject as the connection's identity.
func (m *Manager) Issue(subject string) (string, error) {
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "serialkeel",
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ExtractToken pulls an optional bearer token from either the
// Authorization header or a "token" query parameter, the two places a
// WebSocket upgrade request can realistically carry one.
func ExtractToken(r *http.Request) (string, bool) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, true
	}
	header := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix), true
	}
	return "", false
}

// LabelFor returns the connection-identity label a new Session should be
// tagged with: the verified subject from an optional bearer token, or an
// anonymous placeholder when none is present or it fails verification. A
// missing or invalid token is never a reason to reject the connection —
// identity is ambient metadata here, not an access gate.
func (m *Manager) LabelFor(r *http.Request, anonymous string) string {
	tok, ok := ExtractToken(r)
	if !ok {
		return anonymous
	}
	claims, err := m.Verify(tok)
	if err != nil {
		return anonymous
	}
	return claims.Subject
}
