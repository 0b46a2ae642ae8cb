// Package auth resolves the owner identity of a request. The resolved owner
// id is an opaque string threaded explicitly through the service layer; it is
// resolved exactly once at the HTTP boundary.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix = "Bearer "
	userIDHeader = "X-User-ID"
)

// Resolver validates identity-provider bearer tokens and falls back to the
// X-User-ID header. Resolution never fails hard: token problems just drop
// through to the next source.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver using the identity provider's shared secret
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// ResolveOwner returns the owner id for a request and whether one was found.
// Order: subject claim of a valid bearer token, then the X-User-ID header.
// Callers decide what a missing owner means (anonymous create vs. rejected
// listing).
func (r *Resolver) ResolveOwner(req *http.Request) (string, bool) {
	if authHeader := req.Header.Get("Authorization"); strings.HasPrefix(authHeader, bearerPrefix) {
		if sub, err := r.subjectFromToken(strings.TrimPrefix(authHeader, bearerPrefix)); err == nil && sub != "" {
			return sub, true
		}
	}

	if userID := strings.TrimSpace(req.Header.Get(userIDHeader)); userID != "" {
		return userID, true
	}

	return "", false
}

func (r *Resolver) subjectFromToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}
