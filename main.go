package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitget-trader/internal/api"
	"bitget-trader/internal/events"
	"bitget-trader/internal/market"
	"bitget-trader/internal/monitor"
	"bitget-trader/internal/order"
	"bitget-trader/internal/persistence"
	"bitget-trader/internal/strategy"
	"bitget-trader/pkg/config"
	"bitget-trader/pkg/db"
	exbitget "bitget-trader/pkg/exchanges/bitget"
	exchange "bitget-trader/pkg/exchanges/common"
	marketbitget "bitget-trader/pkg/market/bitget"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting bitget-trader %s for %s (execution=%v)", buildVersion, cfg.Symbol, cfg.ExecutionEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("database migrations failed: %v", err)
	}

	writer := persistence.NewBatchWriter(database.DB, 50, 500*time.Millisecond)
	defer writer.Close()

	var gateway exchange.Gateway = exbitget.NewClient(exbitget.Config{
		APIKey:     cfg.BitgetAPIKey,
		SecretKey:  cfg.BitgetSecretKey,
		Passphrase: cfg.BitgetPassphrase,
		MarginCoin: cfg.MarginCoin,
	})

	cache := market.NewCache(market.DefaultMaxCandles)
	feed := &market.Feed{
		Stream: marketbitget.NewStreamClient(),
		Cache:  cache,
		Bus:    bus,
		Writer: writer,
		Symbol: cfg.Symbol,
	}
	feed.SeedFromStore(ctx, database, market.DefaultMaxCandles)
	feed.Start(ctx)

	alerts := &monitor.Monitor{Bus: bus}
	alerts.Start(ctx)

	execCfg := order.DefaultConfig(cfg.Symbol)
	execCfg.MarginCoin = cfg.MarginCoin
	executor := order.NewExecutor(gateway, bus, database, execCfg)

	if cfg.ExecutionEnabled {
		go executor.RunPendingReconciler(ctx)
		engine := strategy.NewEngine(cache, executor, gateway, cfg.Symbol, cfg.Trading)
		go engine.Run(ctx)
	} else {
		log.Println("execution disabled; running in observe-only mode")
	}

	server := api.NewServer(cache, executor, database, api.SystemMeta{
		Symbol:           cfg.Symbol,
		ExecutionEnabled: cfg.ExecutionEnabled,
		Version:          buildVersion,
		StartedAt:        time.Now(),
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
	feed.Stream.Close()
}
