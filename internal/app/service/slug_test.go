package service

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func TestRandomSlugGenerator_LengthAndCharset(t *testing.T) {
	gen := RandomSlugGenerator{}

	for _, length := range []int{1, 4, GeneratedSlugLength, 22, 64} {
		slug, err := gen.Generate(length)
		require.NoError(t, err)
		assert.Len(t, slug, length)
		assert.Regexp(t, alphanumeric, slug)
	}
}

func TestRandomSlugGenerator_Distinct(t *testing.T) {
	gen := RandomSlugGenerator{}
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		slug, err := gen.Generate(GeneratedSlugLength)
		require.NoError(t, err)
		_, dup := seen[slug]
		require.Falsef(t, dup, "duplicate slug %q after %d draws", slug, i)
		seen[slug] = struct{}{}
	}
}

func TestRandomSlugGenerator_RejectsInvalidLength(t *testing.T) {
	_, err := RandomSlugGenerator{}.Generate(0)
	assert.Error(t, err)
}
