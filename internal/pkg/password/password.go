// Package password wraps bcrypt for account credentials.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const cost = 12

// DummyHash is a fixed, precomputed bcrypt hash (cost 12). When a lookup
// finds no account, callers compare the supplied secret against this hash
// so the "not found" and "wrong password" paths take comparable time. The
// comparison result must be discarded.
const DummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// Hash returns the bcrypt hash of a plaintext password.
func Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether pw matches hash.
func Verify(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
