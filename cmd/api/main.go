package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sealed-ballot/api"
	"sealed-ballot/auth"
	"sealed-ballot/config"
	"sealed-ballot/messaging"
	"sealed-ballot/phase"
	"sealed-ballot/registry"
	"sealed-ballot/service"
	"sealed-ballot/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error",
			"event", "server_failed",
			"module", "main",
			"layer", "bootstrap",
			"error", err.Error(),
		)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	journal, closeJournal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeJournal)

	bus := messaging.NewBus(64, logger)
	publishers := messaging.Fanout{bus}
	if cfg.NATSURL != "" {
		nc, err := messaging.NewNATSPublisher(messaging.NATSConfig{
			URL:           cfg.NATSURL,
			Name:          "sealed-ballot",
			SubjectPrefix: cfg.NATSSubjectPrefix,
		})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, func() { nc.Close() })
		publishers = append(publishers, nc)
	}

	challenges, closeChallenges, err := openChallengeStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closeChallenges)

	operators, err := cfg.OperatorAddresses()
	if err != nil {
		return err
	}

	clock := phase.SystemClock{}
	elections, err := service.NewDirectory(ctx, service.Dependencies{
		Journal:   journal,
		Publisher: publishers,
		Authority: auth.NewOwnerAuthority(operators...),
		Clock:     clock,
		Metrics:   service.NewMetricsCollector(),
		Logger:    logger,
		Registry:  registry.Options{ExclusiveRoles: cfg.ExclusiveRoles},
		QueueSize: cfg.QueueSize,
	})
	if err != nil {
		return err
	}
	closers = append(closers, elections.Close)

	server := api.NewServer(api.Options{
		Addr:       cfg.Addr(),
		Elections:  elections,
		Challenger: auth.NewChallenger(challenges, "sealed-ballot", cfg.ChallengeTTL),
		Tokens:     auth.NewTokenIssuer(cfg.JWTSecret, "sealed-ballot", cfg.TokenTTL, clock.Now),
		Events:     bus,
		Logger:     logger,
	})

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		serverChan <- server.Start()
	}()

	select {
	case err := <-serverChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down",
			"event", "server_shutdown",
			"module", "main",
			"layer", "bootstrap",
			"signal", sig.String(),
		)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Journal, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.DriverPostgres:
		store, err := storage.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := storage.NewJSONStore(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func openChallengeStore(ctx context.Context, cfg *config.Config) (auth.ChallengeStore, func(), error) {
	if cfg.RedisAddr == "" {
		return auth.NewMemoryChallengeStore(time.Now), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return auth.NewRedisChallengeStore(client, "sealed-ballot:challenge:"), func() { client.Close() }, nil
}
