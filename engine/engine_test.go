package engine

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/krisalay/analytics-cache/expiration"
	"github.com/krisalay/analytics-cache/types"
)

type fixedSize struct{}

func (fixedSize) SizeBytes() int64 { return 42 }

func TestSizeOf(t *testing.T) {
	assert.Equal(t, int64(0), SizeOf(nil))
	assert.Equal(t, int64(5), SizeOf("hello"))
	assert.Equal(t, int64(3), SizeOf([]byte{1, 2, 3}))
	assert.Equal(t, int64(42), SizeOf(fixedSize{}))
	assert.Equal(t, int64(len(`{"kind":"students","records":[]}`)), SizeOf(types.Payload{Kind: "students", Records: []types.Record{}}))
}

func TestDefaults(t *testing.T) {
	e := NewCacheEngine(nil, nil, nil, nil)
	assert.NotNil(t, e.Clock)
	assert.IsType(t, expiration.Fixed{}, e.Expiration)
	assert.IsType(t, types.NoopMetrics{}, e.Metrics)
	assert.NotNil(t, e.Logger)
}

func TestOnReadCountsHitAndSlides(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewCacheEngine(clock, expiration.Sliding{}, nil, nil)
	ent := types.NewCacheEntry("k", "v", "c", time.Minute, 1, clock.Now())

	clock.Advance(30 * time.Second)
	e.OnRead(ent, e.Now())

	assert.Equal(t, int64(1), ent.HitCount())
	assert.Equal(t, clock.Now().Add(time.Minute), ent.ExpiresAt)
	assert.False(t, e.IsExpired(ent, clock.Now().Add(59*time.Second)))
}
