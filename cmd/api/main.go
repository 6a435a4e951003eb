package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stablesend/internal/api"
	"stablesend/internal/balance"
	"stablesend/internal/config"
	"stablesend/internal/custody"
	"stablesend/internal/emitters"
	"stablesend/internal/engine"
	"stablesend/internal/events"
	"stablesend/internal/health"
	"stablesend/internal/ledger"
	"stablesend/internal/logger"
	"stablesend/internal/router"
)

const trackedToken = "USDC"

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Msg("Application panicked, recovering")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel)
	log := logger.GetLogger()

	store, err := ledger.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	if err := store.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	custodyClient := custody.NewClient(cfg.Custody, log)
	defer custodyClient.Close()

	kafkaEmitter := emitters.NewKafkaEmitter(cfg.Kafka.BrokerAddress, cfg.Kafka.Topic, log)
	defer kafkaEmitter.Close()
	emitter := &events.LogEmitter{WrappedEmitter: kafkaEmitter, Logger: log}

	resolver := router.NewResolver(log)
	settler := engine.New(custodyClient, store, emitter, resolver, cfg, log)
	aggregator := balance.NewAggregator(custodyClient, trackedToken, log)
	notifier := &events.LogNotifier{Logger: log}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Each network's settlement wallet doubles as the custody reachability probe.
	for network, nc := range cfg.Networks {
		walletID := nc.SettlementWalletID
		health.RegisterProbe(ctx, network.String(), 10*time.Second, func(ctx context.Context) error {
			_, err := custodyClient.GetTokenBalance(ctx, walletID)
			return err
		}, log)
	}
	health.SetReady(true)

	server := api.NewServer(store, settler, aggregator, custodyClient, notifier, cfg.Networks, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("Starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	health.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
