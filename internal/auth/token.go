// Package auth provides password hashing, session cookies and the access
// gate for protected routes.
//
// SESSION FLOW OVERVIEW:
//  1. POST /login with valid credentials → SessionManager.Issue
//  2. Issue stores {sessionID → userID} server-side and sets a cookie holding
//     a signed token that names the session
//  3. On each request the gate validates the token signature, loads the
//     server-side session, then loads the user from the Credential Store
//  4. POST /logout deletes the server-side record and clears the cookie
//
// WHY SIGN A TOKEN THAT ONLY POINTS AT SERVER STATE?
// The session id alone would work, but signing it with SECRET_KEY lets us
// reject forged or truncated cookies without a store round-trip, and the
// token's exp claim enforces the absolute lifetime even if a store keeps a
// record longer than it should.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "gatehouse"

// TokenService signs and validates session tokens (HS256 JWTs).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SECRET_KEY=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: secret key must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload: jti carries the session id, sub the user id.
type claims struct {
	jwt.RegisteredClaims
}

// TokenClaims is what a valid token asserts.
type TokenClaims struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// Generate creates and signs a token naming sessionID and userID, valid
// until expiresAt.
func (s *TokenService) Generate(sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string.
//
// Checks performed by the jwt library: signature, expiry, issuer, and that
// the algorithm is HS256 (so a token claiming "alg":"none" is rejected).
func (s *TokenService) Validate(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.ID == "" || c.Subject == "" {
		return nil, fmt.Errorf("auth: token is missing session or subject")
	}

	return &TokenClaims{
		SessionID: c.ID,
		UserID:    c.Subject,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
