package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// GeneratedSlugLength is the length of slugs issued when none is requested.
const GeneratedSlugLength = 7

// slugEntropyBytes is read per round: 128 bits before filtering and truncation.
const slugEntropyBytes = 16

// SlugGenerator issues unguessable URL-safe identifiers.
type SlugGenerator interface {
	Generate(length int) (string, error)
}

// RandomSlugGenerator draws slugs from crypto/rand.
type RandomSlugGenerator struct{}

// Generate returns exactly length alphanumeric characters.
func (RandomSlugGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("slug: invalid length %d", length)
	}

	var sb strings.Builder
	sb.Grow(length)
	buf := make([]byte, slugEntropyBytes)
	for sb.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("slug: read random: %w", err)
		}
		for _, ch := range base64.RawURLEncoding.EncodeToString(buf) {
			if isAlphanumeric(ch) {
				sb.WriteRune(ch)
				if sb.Len() == length {
					break
				}
			}
		}
	}
	return sb.String(), nil
}

func isAlphanumeric(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
