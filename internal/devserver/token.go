package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingBearer = errors.New("authorization bearer token required")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// identity is the authenticated user behind a connection or request.
type identity struct {
	UserID string
	Name   string
}

// tokenClaims are the claims issued by SignToken.
type tokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for subject. A zero ttl issues a token
// without expiry; a negative ttl issues one that is already expired.
func SignToken(secret []byte, subject, name string, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// authenticate resolves the bearer token on r. Without a secret any
// non-empty token is accepted and used as the user id.
func (s *Server) authenticate(r *http.Request) (identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return identity{}, ErrMissingBearer
	}
	raw = strings.TrimSpace(raw)

	if len(s.cfg.Secret) == 0 {
		return identity{UserID: raw, Name: raw}, nil
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return identity{UserID: claims.Subject, Name: name}, nil
}
