package eviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, pt PolicyType, keys ...string) Policy {
	t.Helper()
	p, err := New(pt)
	require.NoError(t, err)
	for _, k := range keys {
		p.OnPut(k)
	}
	return p
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p := fill(t, LRU, "a", "b", "c")
	p.OnGet("a")

	assert.Equal(t, "b", p.Evict())
	assert.Equal(t, "c", p.Evict())
	assert.Equal(t, "a", p.Evict())
	assert.Equal(t, "", p.Evict())
}

func TestFIFOIgnoresReads(t *testing.T) {
	p := fill(t, FIFO, "a", "b", "c")
	p.OnGet("a")
	p.OnPut("a")

	assert.Equal(t, "a", p.Evict())
	assert.Equal(t, 2, p.Len())
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	p := fill(t, LFU, "a", "b", "c")
	p.OnGet("a")
	p.OnGet("a")
	p.OnGet("c")

	assert.Equal(t, "b", p.Evict())
	assert.Equal(t, "c", p.Evict())
	assert.Equal(t, "a", p.Evict())
}

func TestLFUTiesGoToOldest(t *testing.T) {
	p := fill(t, LFU, "x", "y")
	assert.Equal(t, "x", p.Evict())
}

func TestRemoveForgetsKey(t *testing.T) {
	for _, pt := range []PolicyType{LRU, LFU, FIFO} {
		t.Run(string(pt), func(t *testing.T) {
			p := fill(t, pt, "a", "b")
			p.Remove("a")
			p.Remove("missing")

			assert.Equal(t, 1, p.Len())
			assert.Equal(t, "b", p.Evict())
		})
	}
}

func TestUnknownPolicy(t *testing.T) {
	_, err := New("random")
	assert.Error(t, err)
}
