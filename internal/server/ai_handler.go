package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/repository"
	"github.com/stywzn/qdashboard/internal/service"
	"github.com/stywzn/qdashboard/pkg/ai"
)

const (
	sourceRealtimeAI = "realtime_ai"
	sourceFallback   = "fallback"
)

type analyzeRequest struct {
	Language string          `json:"language"`
	Data     *ai.NetworkData `json:"data"`
}

type queryRequest struct {
	Language string `json:"language"`
	Question string `json:"question"`
}

type analyzeResponse struct {
	*ai.AnalysisResult
	DataSource string `json:"data_source"`
	AIEngine   string `json:"ai_engine"`
}

// bindOptional decodes a JSON body, treating an empty body as valid.
func bindOptional(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(err)
		return false
	}
	return true
}

func (h *HttpServer) aiStatus(c *gin.Context) {
	st := h.engine.Status()
	modelStatus := "unavailable"
	if st.Ready {
		modelStatus = "ready"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"ai_available":      st.Provider != "none",
		"ai_engine_loaded":  st.Ready,
		"model_status":      modelStatus,
		"provider":          st.Provider,
		"breaker":           st.Breaker,
		"last_check":        st.LastCheck,
		"qubic_integration": h.provider.ConnectionStatus() == "connected",
		"timestamp":         time.Now().Unix(),
	})
}

func (h *HttpServer) aiHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.engine.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":          "unhealthy",
			"cloud_available": false,
			"error":           err.Error(),
			"timestamp":       time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"cloud_available": true,
		"provider":        h.engine.Status().Provider,
		"timestamp":       time.Now().Unix(),
	})
}

// analysisInput resolves the data to analyze: the request's own data, or
// live tick data merged with stats. A missing duration is refreshed from
// live data, else set to 1. ok is false when live data is error-shaped.
func (h *HttpServer) analysisInput(ctx context.Context, supplied *ai.NetworkData) (*ai.NetworkData, bool) {
	data := supplied
	if data == nil {
		t := h.provider.TickData(ctx)
		if t.DataSource == service.SourceError {
			return nil, false
		}
		data = service.ToNetworkData(t, h.provider.Stats(ctx))
	}

	if data.Duration == 0 {
		fresh := h.provider.TickData(ctx)
		switch {
		case fresh.DurationS > 0:
			data.Duration = fresh.DurationS
		case fresh.Duration > 0:
			data.Duration = float64(fresh.Duration)
		default:
			data.Duration = 1
		}
	}
	return data, true
}

func (h *HttpServer) aiAnalyze(c *gin.Context) {
	var req analyzeRequest
	if !bindOptional(c, &req) {
		fail(c, http.StatusBadRequest, req.Language, msgInvalidBody)
		return
	}
	lang := health.NormalizeLang(req.Language)
	ctx := c.Request.Context()

	data, ok := h.analysisInput(ctx, req.Data)
	if !ok || !h.engine.Ready() {
		analysis, summary := ai.OfflineAnalysis(lang)
		c.JSON(http.StatusOK, gin.H{
			"analysis":     analysis,
			"summary":      summary,
			"success":      true,
			"data_source":  sourceFallback,
			"ai_available": h.engine.Ready(),
			"timestamp":    time.Now().Unix(),
		})
		return
	}

	res := h.engine.Analyze(ctx, data, lang)
	h.log.Info("ai analysis completed",
		logger.String("lang", lang),
		logger.String("source", res.Source),
		logger.Float64("analysis_time", res.AnalysisTime))

	c.JSON(http.StatusOK, analyzeResponse{
		AnalysisResult: res,
		DataSource:     sourceRealtimeAI,
		AIEngine:       h.engine.Status().Provider,
	})
}

func (h *HttpServer) aiQuery(c *gin.Context) {
	var req queryRequest
	if !bindOptional(c, &req) {
		fail(c, http.StatusBadRequest, req.Language, msgInvalidBody)
		return
	}
	lang := health.NormalizeLang(req.Language)
	question := strings.TrimSpace(req.Question)
	if question == "" {
		fail(c, http.StatusBadRequest, lang, msgMissingQuestion)
		return
	}

	ctx := c.Request.Context()
	start := time.Now()
	data, live := h.provider.NetworkData(ctx)

	if !h.engine.Ready() {
		answer := ai.UnavailableMessage(lang)
		if live {
			answer = ai.OfflineAnswer(data, lang)
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"question":    question,
			"answer":      answer,
			"language":    lang,
			"data_source": sourceFallback,
			"timestamp":   time.Now().Unix(),
		})
		return
	}

	reply := h.engine.Answer(ctx, question, data, lang)
	source := sourceRealtimeAI
	if reply.Source == ai.SourceFallback {
		source = sourceFallback
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"question":      question,
		"answer":        reply.Text,
		"source":        reply.Source,
		"response_time": time.Since(start).Seconds(),
		"language":      lang,
		"data_source":   source,
		"timestamp":     time.Now().Unix(),
	})
}

// aiInsights runs an analysis on live data and returns only the extracted
// insights and recommendations.
func (h *HttpServer) aiInsights(c *gin.Context) {
	lang := langOf(c)
	ctx := c.Request.Context()

	data, ok := h.analysisInput(ctx, nil)
	if !ok {
		fail(c, http.StatusServiceUnavailable, lang, msgStatsUnavailable)
		return
	}
	res := h.engine.Analyze(ctx, data, lang)
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"insights":        res.Insights,
		"recommendations": res.Recommendations,
		"confidence":      res.Confidence,
		"data_quality":    res.DataQuality,
		"source":          res.Source,
		"language":        res.Language,
		"timestamp":       res.Timestamp,
	})
}

func (h *HttpServer) submitTask(c *gin.Context) {
	var req analyzeRequest
	if !bindOptional(c, &req) {
		fail(c, http.StatusBadRequest, req.Language, msgInvalidBody)
		return
	}
	lang := health.NormalizeLang(req.Language)
	if !h.tasks.Enabled() {
		fail(c, http.StatusServiceUnavailable, lang, msgAsyncDisabled)
		return
	}

	ctx := c.Request.Context()
	data, ok := h.analysisInput(ctx, req.Data)
	if !ok {
		fail(c, http.StatusServiceUnavailable, lang, msgStatsUnavailable)
		return
	}

	task, err := h.tasks.Submit(ctx, lang, data)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, lang, msgInternal)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": task.ID,
		"status":  task.Status,
	})
}

func (h *HttpServer) getTask(c *gin.Context) {
	lang := langOf(c)
	view, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, service.ErrAsyncDisabled):
		fail(c, http.StatusServiceUnavailable, lang, msgAsyncDisabled)
	case errors.Is(err, repository.ErrTaskNotFound):
		fail(c, http.StatusNotFound, lang, msgTaskNotFound)
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, lang, msgInternal)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
	}
}
