// Package auth issues and checks the tokens and password hashes behind
// signup and login.
//
// AUTHENTICATION FLOW:
//  1. POST /api/signup or /api/login verifies the credentials.
//  2. The server issues a signed JWT, returned in the body and set as an
//     HttpOnly "token" cookie.
//  3. Protected routes accept the token from "Authorization: Bearer <jwt>"
//     or from the cookie; RequireAuth puts the user id in the context.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","iss":"starlit","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "starlit"

// DefaultTokenTTL is how long a login stays valid. Journaling is a daily
// habit, so a week spares users a password prompt every visit.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService signs and verifies HS256 tokens with one shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService rejects secrets shorter than 16 characters.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate; handlers use it for the
// cookie's Max-Age.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// claims uses "sub" (Subject) for the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID with the service's TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to mint expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate returns the user ID in a valid token.
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, a token claiming "alg":"none" might be
// accepted. WithValidMethods rejects anything but HS256.
func (s *TokenService) Validate(tokenStr string) (string, error) {
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
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
