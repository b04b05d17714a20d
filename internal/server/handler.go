package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/service"
)

const defaultHistoryLimit = 100

type tickResponse struct {
	service.TickData
	HealthText map[string]string `json:"health_text"`
	TrendText  string            `json:"trend_text"`
}

func (h *HttpServer) getTick(c *gin.Context) {
	lang := langOf(c)
	t := h.provider.TickData(c.Request.Context())
	c.JSON(http.StatusOK, tickResponse{
		TickData:   t,
		HealthText: t.Health.Localized(lang),
		TrendText:  health.Text(string(t.Trend), lang),
	})
}

func (h *HttpServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.provider.Stats(c.Request.Context()))
}

func (h *HttpServer) getEpoch(c *gin.Context) {
	p, ok := h.provider.EpochProgress(c.Request.Context())
	if !ok {
		fail(c, http.StatusServiceUnavailable, langOf(c), msgStatsUnavailable)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HttpServer) getStatus(c *gin.Context) {
	conn := h.provider.ConnectionStatus()
	source := service.SourceReal
	if conn != "connected" {
		source = service.SourceError
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"connection_status": conn,
		"data_source":       source,
		"ai_provider":       h.engine.Status().Provider,
		"async_enabled":     h.tasks.Enabled(),
		"history_enabled":   h.snapshots != nil,
		"timestamp":         time.Now().Unix(),
	})
}

// getHealth answers 503 when the network is not serving so load balancers
// can use it directly.
func (h *HttpServer) getHealth(c *gin.Context) {
	lang := langOf(c)
	t := h.provider.TickData(c.Request.Context())

	status, code := "ok", http.StatusOK
	if !t.Health.Overall.Serving() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"health":      t.Health,
		"health_text": t.Health.Localized(lang),
		"tick":        t.Tick,
		"trend":       t.Trend,
		"duration_s":  t.DurationS,
		"timestamp":   time.Now().Unix(),
	})
}

func (h *HttpServer) getHistory(c *gin.Context) {
	if h.snapshots == nil {
		fail(c, http.StatusServiceUnavailable, langOf(c), msgHistoryDisabled)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}

	snaps, err := h.snapshots.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, langOf(c), msgInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(snaps), "data": snaps})
}
