package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/config"
	"github.com/f1-visualizer/f1-visualizer/internal/laps"
	"github.com/f1-visualizer/f1-visualizer/internal/server"
	"github.com/f1-visualizer/f1-visualizer/internal/server/routes"
)

// startHTTPServer 按“缓存 → 数据服务 → Fiber”顺序组装，收到 SIGINT/SIGTERM 后在
// ShutdownTimeout 内优雅退出。
func startHTTPServer(cfg *config.Config, manager *cache.Manager, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		return err
	}

	svc := laps.NewService(cfg.Global.DataDir, manager, logger)
	routes.RegisterCacheRoutes(app, manager)
	routes.RegisterProducerRoutes(app, manager, routes.MemoClearers{laps.SeasonsKey: svc.ClearSeasons})
	routes.RegisterLapRoutes(app, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := cfg.Global.ListenPort
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port))
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.Global.ShutdownTimeout.DurationValue()
	logger.WithFields(logrus.Fields{
		"action":  "shutdown",
		"timeout": timeout.String(),
	}).Info("收到退出信号，开始关闭服务")
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
