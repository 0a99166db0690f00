package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugIndex(t *testing.T) {
	idx := NewSlugIndex(1000, 0.001)

	assert.False(t, idx.MaybeTaken("abc1234"))
	idx.Add("abc1234")
	assert.True(t, idx.MaybeTaken("abc1234"))

	for i := 0; i < 500; i++ {
		idx.Add(fmt.Sprintf("slug%d", i))
	}
	for i := 0; i < 500; i++ {
		assert.True(t, idx.MaybeTaken(fmt.Sprintf("slug%d", i)))
	}
}
