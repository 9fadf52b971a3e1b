// Package token generates the short display codes staff hand to drivers.
package token

import (
	"crypto/rand"
	"fmt"
)

// Alphabet avoids characters that read ambiguously on a printed slip
// (0/O, 1/I/L).
const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// Length of a display code. 31^6 is about 890 million codes, so random
// collision among the handful of concurrently active sessions is negligible;
// the store still verifies uniqueness at check-in and asks for a fresh code
// on conflict.
const Length = 6

// Generator produces session display codes.
type Generator struct{}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{}
}

// Next returns a fresh display code.
func (g *Generator) Next() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
