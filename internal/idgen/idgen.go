// Package idgen provides short, URL-safe booking hash ids backed by nanoid.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// BookingPrefix is prepended to every booking hash id.
	BookingPrefix = "qb-"

	// Alphabet is the character set of the random portion. Lowercase only,
	// so hash ids survive case-folding in confirmation links.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// Length is the number of random characters after the prefix.
	Length = 12

	maxAttempts = 5
)

// ErrExhausted is returned when every attempt of GenerateUnique collided.
var ErrExhausted = errors.New("idgen: no free hash id")

// Generate returns a new booking hash id.
func Generate() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return BookingPrefix + id, nil
}

// GenerateUnique draws hash ids until taken reports one as free.
func GenerateUnique(ctx context.Context, taken func(context.Context, string) (bool, error)) (string, error) {
	for range maxAttempts {
		id, err := Generate()
		if err != nil {
			return "", err
		}
		used, err := taken(ctx, id)
		if err != nil {
			return "", fmt.Errorf("idgen: checking %s: %w", id, err)
		}
		if !used {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// IsHashID reports whether s has the shape of a generated booking hash id.
func IsHashID(s string) bool {
	rest, ok := strings.CutPrefix(s, BookingPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
