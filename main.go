package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/odaihq/odai-server/pkg/agent"
	"github.com/odaihq/odai-server/pkg/config"
	"github.com/odaihq/odai-server/pkg/db"
	"github.com/odaihq/odai-server/pkg/service"
	"github.com/odaihq/odai-server/pkg/session"
	"github.com/odaihq/odai-server/pkg/tools"
	_ "github.com/odaihq/odai-server/pkg/tools/all"
	"github.com/odaihq/odai-server/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("could not write default config", "error", err)
	}
	cfg, cfgPath, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	tools.Init(tools.Config{
		FinnhubKey:       cfg.Connectors.FinnhubKey,
		CoinMarketCapKey: cfg.Connectors.CoinMarketCapKey,
		WeatherAPIKey:    cfg.Connectors.WeatherAPIKey,
		SearchKey:        cfg.Connectors.SearchKey,
		SearchCX:         cfg.Connectors.SearchCX,
		MailgunKey:       cfg.Connectors.MailgunKey,
		MailgunDomain:    cfg.Connectors.MailgunDomain,
		MailFrom:         cfg.Connectors.MailFrom,
	})

	dbPath, err := cfg.DBPath()
	if err != nil {
		logger.Error("failed to resolve database path", "error", err)
		os.Exit(1)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := agent.NewModelOrchestrator(ctx, cfg)
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}
	dispatcher := agent.NewDispatcher(orch, cfg.MaxToolRounds(), cfg.ToolTimeout(), cfg.MaxParallelTools())

	registry := session.NewRegistry()
	store := service.NewChatStore(database)
	manager := session.NewManager(registry, store, dispatcher, cfg.RunTimeout())

	server := NewServer(cfg, registry, manager, store)
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	manager.Wait()
}
