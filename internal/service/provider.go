package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/qubic"
	"github.com/stywzn/qdashboard/pkg/ai"
	"github.com/stywzn/qdashboard/pkg/cache"
)

// Data sources reported alongside every payload.
const (
	SourceReal  = "real"
	SourceError = "error"
)

const (
	tickCacheKey  = "qubic:tick"
	statsCacheKey = "qubic:stats"

	statusConnected    = "connected"
	statusInitializing = "initializing"
)

// TickData is the payload behind /api/tick.
type TickData struct {
	Tick             uint64        `json:"tick"`
	Duration         int64         `json:"duration"`
	DurationMs       int64         `json:"duration_ms"`
	DurationS        float64       `json:"duration_s"`
	Epoch            int64         `json:"epoch"`
	Timestamp        int64         `json:"timestamp"`
	Health           health.Report `json:"health"`
	Trend            health.Trend  `json:"trend"`
	DataSource       string        `json:"data_source"`
	ConnectionStatus string        `json:"connection_status"`
	Error            string        `json:"error,omitempty"`
}

// NetworkStats is the payload behind /api/stats.
type NetworkStats struct {
	ActiveAddresses          int64   `json:"activeAddresses"`
	MarketCap                int64   `json:"marketCap"`
	Price                    float64 `json:"price"`
	EpochTickQuality         float64 `json:"epochTickQuality"`
	CirculatingSupply        int64   `json:"circulatingSupply"`
	BurnedQus                int64   `json:"burnedQus"`
	Epoch                    int64   `json:"epoch"`
	CurrentTick              int64   `json:"currentTick"`
	TicksInCurrentEpoch      int64   `json:"ticksInCurrentEpoch"`
	EmptyTicksInCurrentEpoch int64   `json:"emptyTicksInCurrentEpoch"`
	Timestamp                int64   `json:"timestamp"`
	DataSource               string  `json:"data_source"`
	Error                    string  `json:"error,omitempty"`
}

// Provider fetches, caches and classifies live network data.
type Provider struct {
	api   qubic.API
	cache cache.Cache
	ttl   time.Duration
	est   *health.Estimator
	log   logger.Logger
	now   func() time.Time

	mu         sync.Mutex
	prevTick   uint64
	connStatus string
}

func NewProvider(api qubic.API, c cache.Cache, ttl time.Duration, log logger.Logger) *Provider {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Provider{
		api:        api,
		cache:      c,
		ttl:        ttl,
		est:        health.NewEstimator(),
		log:        log,
		now:        time.Now,
		connStatus: statusInitializing,
	}
}

func (p *Provider) ConnectionStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connStatus
}

func (p *Provider) setConnStatus(s string) {
	p.mu.Lock()
	p.connStatus = s
	p.mu.Unlock()
}

// TickData returns the latest tick with its duration, health and trend.
// Upstream failure yields an error-shaped payload rather than an error.
func (p *Provider) TickData(ctx context.Context) TickData {
	var cached TickData
	if p.cacheGet(ctx, tickCacheKey, &cached) {
		return cached
	}

	var (
		tick   uint64
		stats  qubic.Stats
		status qubic.Status
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		tick, err = p.api.LatestTick(ctx)
		return err
	})
	g.Go(func() error {
		s, err := p.api.LatestStats(ctx)
		if err != nil {
			p.log.Warn("epoch unavailable from stats", logger.Error(err))
			return nil
		}
		stats = s
		return nil
	})
	g.Go(func() error {
		s, err := p.api.Status(ctx)
		if err != nil {
			p.log.Debug("status endpoint unavailable", logger.Error(err))
			return nil
		}
		status = s
		return nil
	})

	err := g.Wait()
	epoch := int64(stats.Epoch)
	if err != nil || epoch == 0 {
		if ft, fe, ok := p.fallbackTick(ctx, status); ok {
			if err != nil {
				p.log.Warn("latest-tick failed, using fallback tick", logger.Uint64("tick", ft), logger.Error(err))
				tick, err = ft, nil
			}
			if epoch == 0 {
				epoch = fe
			}
		}
	}
	if err != nil {
		p.log.Error("fetch tick failed", logger.Error(err))
		p.setConnStatus(fmt.Sprintf("fetch failed: %v", err))
		return p.errorTick()
	}

	di := p.est.Estimate(tick, upstreamOf(status))
	if di.Defaulted && stats.EpochTickQuality > 0 {
		// 没有时间戳时按 epoch tick quality 估算
		di = health.DurationFromSeconds(health.EstimateDuration(
			float64(stats.EpochTickQuality),
			int64(stats.TicksInCurrentEpoch),
			int64(stats.EmptyTicksInCurrentEpoch)))
	}

	p.mu.Lock()
	trend := health.Progression(p.prevTick, tick)
	p.prevTick = tick
	p.connStatus = statusConnected
	p.mu.Unlock()

	data := TickData{
		Tick:             tick,
		Duration:         di.Duration,
		DurationMs:       di.Milliseconds,
		DurationS:        di.Seconds,
		Epoch:            epoch,
		Timestamp:        p.now().Unix(),
		Health:           health.Classify(tick, di.Seconds),
		Trend:            trend,
		DataSource:       SourceReal,
		ConnectionStatus: statusConnected,
	}
	p.log.Debug("tick refreshed",
		logger.Uint64("tick", tick),
		logger.Int64("duration_ms", di.Milliseconds),
		logger.String("health", string(data.Health.Overall)))

	p.cacheSet(ctx, tickCacheKey, data)
	return data
}

// fallbackTick reads tick and epoch from the status payload's last processed
// tick, else from /tick-info.
func (p *Provider) fallbackTick(ctx context.Context, status qubic.Status) (uint64, int64, bool) {
	if lp := status.LastProcessedTick; lp != nil && lp.TickNumber > 0 {
		return lp.TickNumber, int64(lp.Epoch), true
	}
	info, err := p.api.TickInfo(ctx)
	if err != nil || info.Tick == 0 {
		if err != nil {
			p.log.Debug("tick-info unavailable", logger.Error(err))
		}
		return 0, 0, false
	}
	return info.Tick, int64(info.Epoch), true
}

func (p *Provider) errorTick() TickData {
	return TickData{
		Timestamp:        p.now().Unix(),
		Health:           health.Offline(),
		Trend:            health.TrendInvalid,
		DataSource:       SourceError,
		ConnectionStatus: p.ConnectionStatus(),
		Error:            "unable to fetch live Qubic data",
	}
}

// Stats returns the latest network statistics, zeroed on failure.
func (p *Provider) Stats(ctx context.Context) NetworkStats {
	var cached NetworkStats
	if p.cacheGet(ctx, statsCacheKey, &cached) {
		return cached
	}

	s, err := p.api.LatestStats(ctx)
	if err != nil {
		p.log.Error("fetch stats failed", logger.Error(err))
		return NetworkStats{
			Timestamp:  p.now().Unix(),
			DataSource: SourceError,
			Error:      "unable to fetch network statistics",
		}
	}

	out := NetworkStats{
		ActiveAddresses:          int64(s.ActiveAddresses),
		MarketCap:                int64(s.MarketCap),
		Price:                    float64(s.Price),
		EpochTickQuality:         float64(s.EpochTickQuality),
		CirculatingSupply:        int64(s.CirculatingSupply),
		BurnedQus:                int64(s.BurnedQus),
		Epoch:                    int64(s.Epoch),
		CurrentTick:              int64(s.CurrentTick),
		TicksInCurrentEpoch:      int64(s.TicksInCurrentEpoch),
		EmptyTicksInCurrentEpoch: int64(s.EmptyTicksInCurrentEpoch),
		Timestamp:                p.now().Unix(),
		DataSource:               SourceReal,
	}
	p.cacheSet(ctx, statsCacheKey, out)
	return out
}

// EpochProgress derives the current epoch's progress from stats.
func (p *Provider) EpochProgress(ctx context.Context) (health.EpochProgress, bool) {
	s := p.Stats(ctx)
	if s.DataSource == SourceError {
		return health.EpochProgress{}, false
	}
	return health.ComputeEpochProgress(s.Epoch, s.CurrentTick, s.TicksInCurrentEpoch, s.EpochTickQuality), true
}

// NetworkData merges tick data and stats into the analysis input. ok is
// false when the tick could not be fetched.
func (p *Provider) NetworkData(ctx context.Context) (*ai.NetworkData, bool) {
	t := p.TickData(ctx)
	if t.DataSource == SourceError {
		return nil, false
	}
	s := p.Stats(ctx)
	return ToNetworkData(t, s), true
}

// ToNetworkData flattens provider payloads for the AI engine. Duration uses
// the fractional seconds when available.
func ToNetworkData(t TickData, s NetworkStats) *ai.NetworkData {
	d := t.DurationS
	if d == 0 {
		d = float64(t.Duration)
	}
	return &ai.NetworkData{
		Tick:             t.Tick,
		Duration:         d,
		Epoch:            t.Epoch,
		Health:           ai.HealthState{Overall: string(t.Health.Overall)},
		Price:            s.Price,
		ActiveAddresses:  s.ActiveAddresses,
		MarketCap:        s.MarketCap,
		EpochTickQuality: s.EpochTickQuality,
		TicksInEpoch:     s.TicksInCurrentEpoch,
		EmptyTicks:       s.EmptyTicksInCurrentEpoch,
	}
}

func upstreamOf(s qubic.Status) health.Upstream {
	ptr := func(v *qubic.Int) *int64 {
		if v == nil {
			return nil
		}
		n := int64(*v)
		return &n
	}
	return health.Upstream{
		TimestampMs:         ptr(s.TimestampMs),
		PreviousTimestampMs: ptr(s.PreviousTimestampMs),
		Timestamp:           ptr(s.Timestamp),
		PreviousTimestamp:   ptr(s.PreviousTimestamp),
		Duration:            ptr(s.Duration),
	}
}

func (p *Provider) cacheGet(ctx context.Context, key string, dst any) bool {
	if p.ttl <= 0 {
		return false
	}
	ok, err := cache.GetJSON(ctx, p.cache, key, dst)
	if err != nil {
		p.log.Warn("cache read failed", logger.String("key", key), logger.Error(err))
		return false
	}
	return ok
}

func (p *Provider) cacheSet(ctx context.Context, key string, val any) {
	if p.ttl <= 0 {
		return
	}
	if err := cache.SetJSON(ctx, p.cache, key, val, p.ttl); err != nil {
		p.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
	}
}
