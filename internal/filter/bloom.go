package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter is a thread-safe bloom filter over known short codes. It sits in
// front of the link store on the redirect path so lookups for codes that were
// never issued are rejected without a round trip.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter creates a filter sized for the expected number of codes and
// target false positive rate.
func NewCodeFilter(capacity uint, fpRate float64) *CodeFilter {
	return &CodeFilter{
		filter: bloom.NewWithEstimates(capacity, fpRate),
	}
}

// Add records a newly issued short code.
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MightContain reports whether the code may have been issued. False means the
// code definitely does not exist; true may be a false positive.
func (f *CodeFilter) MightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// Seed loads a batch of existing codes, used at startup from the catalog.
func (f *CodeFilter) Seed(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range codes {
		f.filter.AddString(code)
	}
}
