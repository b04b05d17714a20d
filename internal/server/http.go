package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/service"
	"github.com/stywzn/qdashboard/pkg/ai"
)

const shutdownTimeout = 10 * time.Second

// HttpServer serves the dashboard REST API.
type HttpServer struct {
	provider  *service.Provider
	engine    *ai.Engine
	tasks     *service.AnalysisService
	snapshots service.SnapshotStore
	metrics   *Metrics
	log       logger.Logger
	debug     bool
}

// Deps are the collaborators of the HTTP server. Snapshots may be nil when
// persistence is disabled.
type Deps struct {
	Provider  *service.Provider
	Engine    *ai.Engine
	Tasks     *service.AnalysisService
	Snapshots service.SnapshotStore
	Metrics   *Metrics
	Logger    logger.Logger
	Debug     bool
}

func NewHttpServer(d Deps) *HttpServer {
	return &HttpServer{
		provider:  d.Provider,
		engine:    d.Engine,
		tasks:     d.Tasks,
		snapshots: d.Snapshots,
		metrics:   d.Metrics,
		log:       d.Logger,
		debug:     d.Debug,
	}
}

// Router builds the gin engine with every route registered.
func (h *HttpServer) Router() *gin.Engine {
	if !h.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(h.log), CORSMiddleware())
	if h.metrics != nil {
		r.Use(MetricsMiddleware(h.metrics))
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/tick", h.getTick)
		api.GET("/stats", h.getStats)
		api.GET("/epoch", h.getEpoch)
		api.GET("/status", h.getStatus)
		api.GET("/health", h.getHealth)
		api.GET("/history", h.getHistory)
	}

	aiGroup := api.Group("/ai")
	{
		aiGroup.GET("/status", h.aiStatus)
		aiGroup.GET("/health", h.aiHealth)
		aiGroup.POST("/analyze", h.aiAnalyze)
		aiGroup.POST("/query", h.aiQuery)
		aiGroup.GET("/insights", h.aiInsights)
		aiGroup.POST("/tasks", h.submitTask)
		aiGroup.GET("/tasks/:id", h.getTask)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (h *HttpServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info("http server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
