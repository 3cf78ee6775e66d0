package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/config"
	"feedkeeper/internal/db"
	"feedkeeper/internal/handler"
	transport "feedkeeper/internal/http"
	"feedkeeper/internal/logger"
	"feedkeeper/internal/network"
	"feedkeeper/internal/repository"
	"feedkeeper/internal/scheduler"
	"feedkeeper/internal/service"
	"feedkeeper/internal/snowflake"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))
	if err := snowflake.Init(1); err != nil {
		logger.Fatal("init id generator failed", "module", "main", "action", "init", "resource", "snowflake", "result", "failed", "error", err)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open database failed", "module", "main", "action", "open", "resource", "db", "result", "failed", "error", err)
	}
	defer dbConn.Close()

	itemRepo := repository.NewItemRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)

	clients := network.NewClientFactory(cfg.ProxyURL)
	registry := backend.NewRegistry(clients, cfg.FetchTimeout)
	syncCtx := service.NewSyncContext()

	treeService := service.NewTreeService(itemRepo, messageRepo, registry, syncCtx)
	if err := treeService.Load(context.Background()); err != nil {
		logger.Fatal("load item tree failed", "module", "main", "action", "load", "resource", "tree", "result", "failed", "error", err)
	}

	syncService := service.NewSyncService(dbConn, treeService, registry, syncCtx, cfg.FetchRate, cfg.FetchConcurrency)
	messageService := service.NewMessageService(messageRepo, treeService)
	binService := service.NewBinService(messageRepo, treeService)
	cleanupService := service.NewCleanupService(dbConn, messageRepo, treeService, syncCtx)
	importService := service.NewImportService(itemRepo, treeService, registry)
	importTasks := service.NewImportTaskService()

	router := transport.NewRouter(
		handler.NewTreeHandler(treeService),
		handler.NewMessageHandler(messageService, binService),
		handler.NewUpdateHandler(syncService),
		handler.NewCleanupHandler(cleanupService),
		handler.NewImportHandler(importService, importTasks),
	)

	sched := scheduler.New(syncService, treeService, cfg.UpdateInterval)
	sched.Start()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down", "module", "main", "action", "shutdown", "resource", "server", "result", "ok")
		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := router.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "module", "main", "action", "shutdown", "resource", "server", "result", "failed", "error", err)
		}
	}()

	logger.Info("server starting", "module", "main", "action", "start", "resource", "server", "result", "ok", "addr", cfg.Addr)
	if err := router.Start(cfg.Addr); err != nil {
		logger.Info("server stopped", "module", "main", "action", "stop", "resource", "server", "result", "ok", "error", err)
	}
}
