package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/service"
)

const namespace = "qdashboard"

var healthLabels = []health.Label{
	health.LabelHealthy, health.LabelNormal, health.LabelSlow, health.LabelAbnormal, health.LabelOffline,
}

// Metrics holds the dashboard's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Tick             prometheus.Gauge
	Epoch            prometheus.Gauge
	TickDuration     prometheus.Gauge
	Health           *prometheus.GaugeVec
	FetchErrors      *prometheus.CounterVec
	ActiveAddresses  prometheus.Gauge
	Price            prometheus.Gauge
	EpochTickQuality prometheus.Gauge

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Tick: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_tick",
			Help: "Latest observed network tick.",
		}),
		Epoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_epoch",
			Help: "Current network epoch.",
		}),
		TickDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_tick_duration_seconds",
			Help: "Estimated duration of the latest tick.",
		}),
		Health: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_health",
			Help: "1 for the current overall health label, 0 otherwise.",
		}, []string{"label"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upstream_fetch_errors_total",
			Help: "Failed upstream fetches by kind.",
		}, []string{"kind"}),
		ActiveAddresses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_active_addresses",
			Help: "Active addresses from latest stats.",
		}),
		Price: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_price_usd",
			Help: "Token price from latest stats.",
		}),
		EpochTickQuality: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "network_epoch_tick_quality_percent",
			Help: "Share of non-empty ticks in the current epoch.",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordTick implements service.Recorder.
func (m *Metrics) RecordTick(t service.TickData) {
	if t.DataSource == service.SourceError {
		m.FetchErrors.WithLabelValues("tick").Inc()
	} else {
		m.Tick.Set(float64(t.Tick))
		m.Epoch.Set(float64(t.Epoch))
		m.TickDuration.Set(t.DurationS)
	}
	for _, l := range healthLabels {
		v := 0.0
		if l == t.Health.Overall {
			v = 1
		}
		m.Health.WithLabelValues(string(l)).Set(v)
	}
}

// RecordStats implements service.Recorder.
func (m *Metrics) RecordStats(s service.NetworkStats) {
	if s.DataSource == service.SourceError {
		m.FetchErrors.WithLabelValues("stats").Inc()
		return
	}
	m.ActiveAddresses.Set(float64(s.ActiveAddresses))
	m.Price.Set(s.Price)
	m.EpochTickQuality.Set(s.EpochTickQuality)
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
