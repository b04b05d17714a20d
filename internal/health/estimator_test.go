package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func i64(v int64) *int64 { return &v }

func TestEstimator_PrefersMillisecondTimestamps(t *testing.T) {
	e := NewEstimator()
	got := e.Estimate(10, Upstream{
		TimestampMs: i64(5250), PreviousTimestampMs: i64(4000),
		Timestamp: i64(9), PreviousTimestamp: i64(1),
	})

	assert.Equal(t, int64(1250), got.Milliseconds)
	assert.InDelta(t, 1.25, got.Seconds, 1e-9)
	assert.Equal(t, int64(2), got.Duration)
}

func TestEstimator_SecondTimestampsAndDuration(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, int64(3000), e.Estimate(10, Upstream{Timestamp: i64(13), PreviousTimestamp: i64(10)}).Milliseconds)
	assert.Equal(t, int64(2000), e.Estimate(11, Upstream{Duration: i64(2)}).Milliseconds)
}

func TestEstimator_NegativeDeltaClampsToZero(t *testing.T) {
	e := NewEstimator()
	got := e.Estimate(10, Upstream{TimestampMs: i64(1), PreviousTimestampMs: i64(5)})

	assert.Equal(t, int64(0), got.Milliseconds)
	assert.Equal(t, int64(0), got.Duration)
}

func TestEstimator_MonotonicFallback(t *testing.T) {
	now := time.Unix(0, 0)
	e := NewEstimator()
	e.now = func() time.Time { return now }

	first := e.Estimate(100, Upstream{})
	assert.Equal(t, int64(defaultDurationMs), first.Milliseconds, "first sample has nothing to compare against")
	assert.True(t, first.Defaulted)

	now = now.Add(1400 * time.Millisecond)
	second := e.Estimate(101, Upstream{})
	assert.Equal(t, int64(1400), second.Milliseconds)
	assert.Equal(t, int64(2), second.Duration)
	assert.False(t, second.Defaulted)

	now = now.Add(700 * time.Millisecond)
	stalled := e.Estimate(101, Upstream{})
	assert.Equal(t, int64(defaultDurationMs), stalled.Milliseconds, "no advance, no measurement")
	assert.True(t, stalled.Defaulted)

	now = now.Add(300 * time.Millisecond)
	third := e.Estimate(102, Upstream{})
	assert.Equal(t, int64(300), third.Milliseconds, "clock is re-read on every fallback call")
	assert.Equal(t, uint64(102), e.LastTick())
}

func TestEstimator_ConcurrentUse(t *testing.T) {
	e := NewEstimator()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(tick uint64) {
			defer wg.Done()
			_ = e.Estimate(tick, Upstream{})
		}(uint64(i))
	}
	wg.Wait()
	assert.NotZero(t, e.LastTick())
}

func TestDurationFromSeconds(t *testing.T) {
	d := DurationFromSeconds(2.5 + 2*6722.0/84874.0)
	assert.Equal(t, int64(2658), d.Milliseconds)
	assert.InDelta(t, 2.658, d.Seconds, 1e-9)
	assert.Equal(t, int64(3), d.Duration)
	assert.False(t, d.Defaulted)

	assert.Equal(t, int64(0), DurationFromSeconds(-1).Milliseconds)
}
