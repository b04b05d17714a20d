package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/stywzn/qdashboard/internal/app"
	"github.com/stywzn/qdashboard/internal/config"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/repository"
	"github.com/stywzn/qdashboard/internal/server"
	"github.com/stywzn/qdashboard/internal/service"
	"github.com/stywzn/qdashboard/pkg/db"
	"github.com/stywzn/qdashboard/pkg/mq"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup and returns the exit code.
func run() int {
	// 1. 加载配置与日志
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}
	log, err := app.Logger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 缓存、上游 RPC 与 AI 引擎
	c, closeCache := app.Cache(cfg.Redis, log)
	defer closeCache()

	provider := service.NewProvider(app.QubicClient(cfg.RPC), c, cfg.RPC.CacheTTL, log)
	engine := app.Engine(cfg.AI, c, log)

	// 3. 可选的 MySQL 与 RabbitMQ
	var (
		store     service.TaskStore
		snapshots service.SnapshotStore
		publisher service.Publisher
	)
	if cfg.MySQL.DSN != "" {
		gdb, err := db.Open(cfg.MySQL.DSN)
		if err != nil {
			log.Error("mysql open failed", logger.Error(err))
			return 1
		}
		repo := repository.New(gdb)
		store, snapshots = repo, repo
		log.Info("mysql connected, history enabled")
	}
	if cfg.RabbitMQ.URL != "" {
		client, err := mq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Error("rabbitmq dial failed", logger.Error(err))
			return 1
		}
		defer func() { _ = client.Close() }()
		publisher = client
		log.Info("rabbitmq connected", logger.String("queue", client.Queue()))
	}
	if store == nil || publisher == nil {
		store, publisher = nil, nil
		log.Info("async analysis disabled")
	}
	tasks := service.NewAnalysisService(store, publisher, engine, log)

	// 4. 指标、gRPC 健康检查与后台轮询
	metrics := server.NewMetrics()
	grpcSrv := server.NewGRPCServer(log)

	opts := []service.PollerOption{
		service.WithRecorder(metrics),
		service.WithStatusSetter(grpcSrv.Health()),
		service.WithAIHealth(engine.Health),
	}
	if snapshots != nil {
		opts = append(opts, service.WithSnapshots(snapshots))
	}
	poller := service.NewPoller(provider, service.PollerConfig{
		TickInterval:   cfg.Poll.Tick,
		StatsInterval:  cfg.Poll.Stats,
		HealthInterval: cfg.Poll.Health,
	}, log, opts...)

	httpSrv := server.NewHttpServer(server.Deps{
		Provider:  provider,
		Engine:    engine,
		Tasks:     tasks,
		Snapshots: snapshots,
		Metrics:   metrics,
		Logger:    log,
		Debug:     cfg.Server.Debug,
	})

	// 5. 启动
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return grpcSrv.Serve(cfg.Server.GRPCAddr())
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcSrv.Stop()
		return nil
	})
	g.Go(func() error {
		return httpSrv.Run(gctx, cfg.Server.Addr())
	})

	log.Info("qdashboard started",
		logger.String("http", cfg.Server.Addr()),
		logger.String("grpc", cfg.Server.GRPCAddr()))
	if err := g.Wait(); err != nil {
		log.Error("server exited", logger.Error(err))
		return 1
	}
	log.Info("qdashboard stopped")
	return 0
}
