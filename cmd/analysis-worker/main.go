package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stywzn/qdashboard/internal/app"
	"github.com/stywzn/qdashboard/internal/config"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/repository"
	"github.com/stywzn/qdashboard/internal/service"
	"github.com/stywzn/qdashboard/pkg/db"
	"github.com/stywzn/qdashboard/pkg/mq"
)

func main() {
	os.Exit(run())
}

func run() int {
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

	// 1. 连接数据库与 RabbitMQ, worker 必须两者都有
	gdb, err := db.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Error("mysql open failed", logger.Error(err))
		return 1
	}
	repo := repository.New(gdb)

	client, err := mq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	if err != nil {
		log.Error("rabbitmq dial failed", logger.Error(err))
		return 1
	}
	defer func() { _ = client.Close() }()

	// 2. AI 引擎, 与 api-server 共享同一份缓存配置
	c, closeCache := app.Cache(cfg.Redis, log)
	defer closeCache()
	engine := app.Engine(cfg.AI, c, log)

	svc := service.NewAnalysisService(repo, client, engine, log)

	// 3. QoS 预取 = worker 数 * 2
	workers := max(cfg.AI.Workers, 1)
	msgs, err := client.Deliveries(workers * 2)
	if err != nil {
		log.Error("rabbitmq consume failed", logger.Error(err))
		return 1
	}

	log.Info("analysis worker pool started",
		logger.Int("workers", workers),
		logger.String("queue", client.Queue()),
		logger.String("ai_provider", engine.Status().Provider))

	mq.Serve(ctx, workers, msgs, svc.Process)
	log.Info("analysis worker stopped")
	return 0
}
