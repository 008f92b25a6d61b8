package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server: negligible for one login, expensive for a brute-force run.
const defaultCost = 12

// ErrInvalidPassword is returned by Verify on a mismatch.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so tests can inject cost 4, the
// bcrypt minimum, and run in milliseconds.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash rejects passwords over 72 bytes, which bcrypt would silently truncate.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// IsHash reports whether stored looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsHash(stored string) bool {
	return strings.HasPrefix(stored, "$2") && len(stored) == 60
}

// Verify checks plaintext against the stored password.
//
// LEGACY ROWS:
// Accounts created before hashing was introduced still hold the plaintext.
// Those compare in constant time and report needsRehash, so the caller can
// replace the row with a bcrypt hash on the spot.
func (p *PasswordService) Verify(stored, plaintext string) (needsRehash bool, err error) {
	if stored == "" {
		return false, ErrInvalidPassword
	}
	if !IsHash(stored) {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) != 1 {
			return false, ErrInvalidPassword
		}
		return true, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, ErrInvalidPassword
		}
		return false, fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return false, nil
}
