package health

import (
	"math"
	"sync"
	"time"
)

// Upstream carries whichever timing hints the RPC status endpoint returned.
// All fields are optional.
type Upstream struct {
	TimestampMs         *int64
	PreviousTimestampMs *int64
	Timestamp           *int64
	PreviousTimestamp   *int64
	Duration            *int64
}

// DurationInfo is the estimator output. Duration keeps whole seconds for
// older dashboard clients.
type DurationInfo struct {
	Milliseconds int64   `json:"duration_ms"`
	Seconds      float64 `json:"duration_s"`
	Duration     int64   `json:"duration"`
	// Defaulted is set when neither upstream nor the clock gave a
	// measurement and Milliseconds is the 1000 ms placeholder.
	Defaulted bool `json:"-"`
}

const defaultDurationMs = 1000

// Estimator derives a tick duration, falling back to the local monotonic
// clock when upstream supplies no timestamps.
type Estimator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTick uint64
	lastObs  time.Time
	hasObs   bool
}

func NewEstimator() *Estimator {
	return &Estimator{now: time.Now}
}

// Estimate returns the duration for the observation of tick.
func (e *Estimator) Estimate(tick uint64, up Upstream) DurationInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := fromUpstream(up)
	if !ok {
		now := e.now()
		if e.hasObs && e.lastTick != 0 && tick > e.lastTick {
			ms = max(0, now.Sub(e.lastObs).Milliseconds())
			ok = true
		}
		e.lastObs = now
		e.hasObs = true
	}
	e.lastTick = tick

	if !ok {
		info := newDurationInfo(defaultDurationMs)
		info.Defaulted = true
		return info
	}
	return newDurationInfo(ms)
}

// LastTick is the most recently observed tick, 0 before the first call.
func (e *Estimator) LastTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTick
}

func fromUpstream(up Upstream) (int64, bool) {
	switch {
	case up.TimestampMs != nil && up.PreviousTimestampMs != nil:
		return max(0, *up.TimestampMs-*up.PreviousTimestampMs), true
	case up.Timestamp != nil && up.PreviousTimestamp != nil:
		return max(0, *up.Timestamp-*up.PreviousTimestamp) * 1000, true
	case up.Duration != nil:
		return max(0, *up.Duration) * 1000, true
	}
	return 0, false
}

// DurationFromSeconds builds a DurationInfo from an estimate in seconds.
func DurationFromSeconds(secs float64) DurationInfo {
	return newDurationInfo(int64(math.Round(max(0, secs) * 1000)))
}

func newDurationInfo(ms int64) DurationInfo {
	info := DurationInfo{Milliseconds: ms, Seconds: float64(ms) / 1000}
	if ms > 0 {
		info.Duration = (ms + 999) / 1000
	}
	return info
}
