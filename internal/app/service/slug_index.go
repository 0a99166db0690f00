package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SlugIndex remembers slugs issued by this process so that custom-slug
// requests can skip the store lookup when the slug was certainly never seen.
// A negative answer is only a hint: the store's unique constraint still
// decides, which also covers slugs issued before a restart or by another
// instance.
type SlugIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewSlugIndex sizes the filter for capacity slugs at the given false
// positive rate.
func NewSlugIndex(capacity uint, fpRate float64) *SlugIndex {
	return &SlugIndex{filter: bloom.NewWithEstimates(capacity, fpRate)}
}

// Add records slug as possibly taken.
func (i *SlugIndex) Add(slug string) {
	i.mu.Lock()
	i.filter.AddString(slug)
	i.mu.Unlock()
}

// MaybeTaken is false only when slug was never added.
func (i *SlugIndex) MaybeTaken(slug string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(slug)
}
