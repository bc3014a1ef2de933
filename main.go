package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sjsage522/pricemonitor/config"
	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/admin"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
	"sjsage522/pricemonitor/services/tracker"
	"sjsage522/pricemonitor/services/worker"

	"github.com/joho/godotenv"
)

const usage = `usage: pricemonitor [command]

commands:
  run                      start the price monitor and its admin API (default)
  check <url>              resolve one product page and print its price
  add <chat-id> <url>      start monitoring a product
  list <chat-id>           list monitored products
  remove <chat-id> <url>   stop monitoring a product
  status <chat-id>         show monitor status

add, list, remove and status talk to the running monitor at ADMIN_ADDR.`

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	args := os.Args[1:]
	command := "run"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if command == "run" {
		// Initialize services
		services, err := initializeServices(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize services")
		}
		defer services.Cleanup()

		runMonitor(ctx, cancel, cfg, services)
		return
	}
	if err := runCommand(ctx, cfg, command, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runMonitor starts the background cycle and the admin API over the same
// dependencies, then blocks until a shutdown signal
func runMonitor(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, services *Services) {
	log := logger.Default

	log.Info().
		Str("environment", cfg.Environment).
		Dur("check_interval", cfg.CheckInterval).
		Dur("delay_min", cfg.RandomDelayMin).
		Dur("delay_max", cfg.RandomDelayMax).
		Str("admin_addr", cfg.AdminAddr).
		Bool("debug", cfg.DebugMode).
		Msg("Starting application")

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	w := worker.NewWorker(
		ctx,
		services.Dependencies,
		services.Pipeline.Pacer,
		time.Sleep,
		cfg.CheckInterval,
		cfg.RecoveryInterval,
	)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.Start()
	}()

	adminServer := admin.NewServer(cfg.AdminAddr, tracker.New(services.Dependencies, cfg.AllowedHost, cfg.CheckInterval))
	adminErr := make(chan error, 1)
	go func() {
		adminErr <- adminServer.Start()
	}()

	// Wait for shutdown signal, worker exit or admin API failure
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case <-workerDone:
		log.Info().Msg("Worker exited")
	case err := <-adminErr:
		if err != nil {
			log.Error().Err(err).Msg("Admin API stopped")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.LogError("admin", err, "Admin API shutdown failed")
	}

	// A fetch or backoff sleep in flight runs to completion; the process does not wait for it
	log.Info().Msg("Shutting down gracefully...")
}

// runCommand executes one command. Product commands go through the running
// monitor's admin API so every write lands in the monitor's store.
func runCommand(ctx context.Context, cfg *config.Config, command string, args []string) error {
	client := admin.NewClient("http://" + cfg.AdminAddr)

	switch command {
	case "check":
		if len(args) != 1 {
			return errors.New(usage)
		}
		pipeline, err := crawler.CreatePipeline(cfg, nil, time.Sleep)
		if err != nil {
			return err
		}
		res, ok := pipeline.Resolver.ResolvePrice(ctx, args[0])
		if !ok {
			return fmt.Errorf("no price found for %s", args[0])
		}
		fmt.Printf("%s\n%s\n", res.Name, tracker.FormatPrice(res.Price))
		return nil

	case "add":
		chatID, err := chatArg(args, 2)
		if err != nil {
			return err
		}
		entry, err := client.Add(ctx, chatID, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✅ Added to monitoring:\n📦 %s\n💰 Current price: %s\n", entry.Name, tracker.FormatPrice(entry.LastPrice))
		return nil

	case "list":
		chatID, err := chatArg(args, 1)
		if err != nil {
			return err
		}
		entries, err := client.List(ctx, chatID)
		if err != nil {
			return err
		}
		fmt.Print(tracker.FormatList(entries))
		return nil

	case "remove":
		chatID, err := chatArg(args, 2)
		if err != nil {
			return err
		}
		p, err := client.Remove(ctx, chatID, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✅ Removed %s from monitoring.\n", p.Name)
		return nil

	case "status":
		chatID, err := chatArg(args, 1)
		if err != nil {
			return err
		}
		status, err := client.Status(ctx, chatID)
		if err != nil {
			return err
		}
		fmt.Println(tracker.FormatStatus(status))
		return nil
	}

	return errors.New(usage)
}

func chatArg(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, errors.New(usage)
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", args[0], err)
	}
	return chatID, nil
}

// Services holds all the initialized services
type Services struct {
	internal.Dependencies
	Pipeline *crawler.Pipeline
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Product store
	productStore, err := store.Open(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	services.Store = productStore

	// Extraction pipeline
	pipeline, err := crawler.CreatePipeline(cfg, nil, time.Sleep)
	if err != nil {
		return nil, err
	}
	services.Pipeline = pipeline
	services.Resolver = pipeline.Resolver

	// Result cache; the monitor runs without it if memcache is down
	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		logger.Warn("Memcache at %s unavailable, result cache disabled: %v", cfg.MemcacheAddr, err)
		services.Results = cache.NewResultCache(nil, cfg.ResultCacheTTL)
	} else {
		services.Results = cache.NewResultCache(memcacheService, cfg.ResultCacheTTL)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	// Alert publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(); err != nil {
		logger.Warn("Redis at %s unavailable, alerts will fail until it is reachable: %v", cfg.RedisAddr, err)
	} else {
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}
	services.Publisher = redisPublisher

	return services, nil
}
