// Package auth loads the locally stored bearer token used to authenticate
// the realtime transport and the REST API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth token is required")
	ErrTokenExpired = errors.New("auth token expired")
)

// Credentials holds the bearer token and the claims read from it.
//
// The token is issued and verified by the server; claims are read without
// signature verification and only used for local expiry checks and logging.
type Credentials struct {
	Token     string
	Subject   string    // "sub" claim, empty for opaque tokens
	ExpiresAt time.Time // Zero when the token carries no expiry
}

// LoadCredentials builds credentials from an inline token or, if empty, from
// the file at tokenPath.
func LoadCredentials(token, tokenPath string) (Credentials, error) {
	if token == "" && tokenPath != "" {
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return Credentials{}, fmt.Errorf("read token file: %w", err)
		}
		token = string(data)
	}

	return ParseToken(token)
}

// ParseToken wraps a raw token. JWTs have their registered claims extracted;
// any other non-empty string is accepted as an opaque token.
func ParseToken(token string) (Credentials, error) {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return Credentials{}, ErrMissingToken
	}

	creds := Credentials{Token: token}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return creds, nil
	}

	creds.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Time
	}

	return creds, nil
}

// Validate reports whether the credentials can be used at now.
func (c Credentials) Validate(now time.Time) error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, c.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Header returns the HTTP headers carrying the token, for both the websocket
// handshake and REST requests.
func (c Credentials) Header() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)
	return header
}
