// Package tokengen generates the short path tokens that mask link targets.
// Generators should be safe for concurrent use.
package tokengen

import (
	"crypto/rand"
	"errors"
)

const (
	// DefaultLength is the token length used for masked links.
	DefaultLength = 5

	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
)

// Generator generates masked-link tokens.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// lowercaseGenerator implements Generator over the lowercase a-z alphabet.
// The tokens are an obfuscation aid, not an access-control mechanism: with
// 26^5 distinct values they are guessable by a determined client.
type lowercaseGenerator struct{}

// NewLowercase returns a new lowercase a-z token generator.
func NewLowercase() Generator {
	return &lowercaseGenerator{}
}

// Generate generates a random lowercase string of the specified length.
func (g *lowercaseGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = lowercaseChars[int(b[i])%len(lowercaseChars)]
	}

	return string(b), nil
}
