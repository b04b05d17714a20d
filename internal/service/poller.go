package service

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/model"
)

// gRPC health service names.
const (
	NetworkService = "qubic.network"
	AIService      = "qubic.ai"
)

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s *model.NetworkSnapshot) error
	ListSnapshots(ctx context.Context, limit int) ([]model.NetworkSnapshot, error)
}

// Recorder receives every poll result, e.g. to export metrics.
type Recorder interface {
	RecordTick(TickData)
	RecordStats(NetworkStats)
}

// StatusSetter is satisfied by the gRPC health server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

type PollerConfig struct {
	TickInterval   time.Duration
	StatsInterval  time.Duration
	HealthInterval time.Duration
}

// Poller keeps the cache warm and pushes network state to metrics, the gRPC
// health server and the snapshot table.
type Poller struct {
	provider  *Provider
	cfg       PollerConfig
	snapshots SnapshotStore
	recorder  Recorder
	status    StatusSetter
	aiHealth  func(context.Context) error
	log       logger.Logger
}

type PollerOption func(*Poller)

func WithSnapshots(s SnapshotStore) PollerOption { return func(p *Poller) { p.snapshots = s } }
func WithRecorder(r Recorder) PollerOption       { return func(p *Poller) { p.recorder = r } }
func WithStatusSetter(s StatusSetter) PollerOption {
	return func(p *Poller) { p.status = s }
}

// WithAIHealth probes the AI backend on the health interval.
func WithAIHealth(fn func(context.Context) error) PollerOption {
	return func(p *Poller) { p.aiHealth = fn }
}

func NewPoller(provider *Provider, cfg PollerConfig, log logger.Logger, opts ...PollerOption) *Poller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 30 * time.Second
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 10 * time.Second
	}
	p := &Poller{provider: provider, cfg: cfg, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller started",
		logger.Duration("tick_interval", p.cfg.TickInterval),
		logger.Duration("stats_interval", p.cfg.StatsInterval),
		logger.Duration("health_interval", p.cfg.HealthInterval))

	tickT := time.NewTicker(p.cfg.TickInterval)
	statsT := time.NewTicker(p.cfg.StatsInterval)
	healthT := time.NewTicker(p.cfg.HealthInterval)
	defer tickT.Stop()
	defer statsT.Stop()
	defer healthT.Stop()

	p.pollTick(ctx)
	p.pollStats(ctx)
	p.pollAI(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-tickT.C:
			p.pollTick(ctx)
		case <-statsT.C:
			p.pollStats(ctx)
		case <-healthT.C:
			p.pollAI(ctx)
		}
	}
}

func (p *Poller) pollTick(ctx context.Context) {
	t := p.provider.TickData(ctx)

	if p.recorder != nil {
		p.recorder.RecordTick(t)
	}
	if p.status != nil {
		st := healthpb.HealthCheckResponse_SERVING
		if !t.Health.Overall.Serving() {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		p.status.SetServingStatus(NetworkService, st)
	}
	if p.snapshots != nil && t.DataSource == SourceReal {
		snap := &model.NetworkSnapshot{
			Tick:       t.Tick,
			Epoch:      t.Epoch,
			DurationMs: t.DurationMs,
			Health:     string(t.Health.Overall),
			Trend:      string(t.Trend),
			DataSource: t.DataSource,
		}
		if err := p.snapshots.SaveSnapshot(ctx, snap); err != nil {
			p.log.Warn("save snapshot failed", logger.Error(err))
		}
	}
}

func (p *Poller) pollStats(ctx context.Context) {
	s := p.provider.Stats(ctx)
	if p.recorder != nil {
		p.recorder.RecordStats(s)
	}
}

func (p *Poller) pollAI(ctx context.Context) {
	if p.aiHealth == nil || p.status == nil {
		return
	}
	st := healthpb.HealthCheckResponse_SERVING
	if err := p.aiHealth(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		p.log.Debug("ai backend unhealthy", logger.Error(err))
	}
	p.status.SetServingStatus(AIService, st)
}
