// Package otp generates and checks the short numeric codes used to prove
// control of an email address.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Length is the number of decimal digits in a generated code. The format
// validator uses the same constant, so generation and validation cannot
// drift apart.
const Length = 6

// cost is the bcrypt work factor for code hashes.
const cost = 12

const (
	rangeMin  = 100000
	rangeSpan = 900000
)

// Generate produces a 6-digit decimal code in [100000, 999999] from a
// CSPRNG. The slight modulo bias is acceptable for a human-facing code.
func Generate() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	n := binary.BigEndian.Uint32(b[:])%rangeSpan + rangeMin
	return fmt.Sprintf("%0*d", Length, n), nil
}

// Hash returns the bcrypt hash of a code.
func Hash(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(h), nil
}

// Verify reports whether code is the input that produced hash.
// bcrypt comparison is constant-time by construction.
func Verify(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// ConstantTimeCompare compares two strings without leaking the position of
// the first mismatching byte. A length mismatch returns false rather than
// an error; that short-circuit leaks only the length, which is tolerated.
func ConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
