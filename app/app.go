package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"cosmichub-sync/api"
	"cosmichub-sync/cache"
	"cosmichub-sync/chartsync"
	"cosmichub-sync/config"
	"cosmichub-sync/connectivity"
	"cosmichub-sync/database"
	"cosmichub-sync/ephemeris"
	"cosmichub-sync/events"
	"cosmichub-sync/notifications"
	"cosmichub-sync/realtime"
)

// App represents the main application
type App struct {
	config   *config.Config
	db       *database.Database
	redis    *cache.RedisClient
	repo     *database.SyncRepository
	bus      *events.Bus
	registry *chartsync.Registry
	monitor  *connectivity.Monitor
	bridge   *notifications.Bridge
	broker   *realtime.Broker
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
		bus:    events.NewBus(),
	}
}

// Start starts the application
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database connection
	fmt.Println("🗄️  Connecting to database...")

	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}

	db, err := database.Connect(
		a.config.DatabaseHost,
		dbPort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	a.repo = database.NewSyncRepository(a.db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 2. Redis connection
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)
	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Falling back to in-process caching.")
	} else {
		a.redis = redisClient
	}

	// 3. Ephemeris collaborator and sync registry
	calc := ephemeris.NewHTTPCalculator(
		a.config.EphemerisEndpoint,
		a.config.Sync.EphemerisRequestsPerSecond,
		a.config.Sync.EphemerisBurst,
	)
	fetcher := ephemeris.NewFetcher(calc, a.redis, time.Duration(a.config.Sync.SnapshotCacheTTLSeconds)*time.Second)

	a.registry = chartsync.NewRegistry(a.bus, fetcher, calc, a.repo, chartsync.Config{
		GlobalRefreshInterval: time.Duration(a.config.Sync.GlobalRefreshSeconds) * time.Second,
		DefaultUpdateInterval: time.Duration(a.config.Sync.DefaultUpdateIntervalMinutes) * time.Minute,
		ProgressionRefreshAge: time.Duration(a.config.Sync.ProgressionRefreshHours) * time.Hour,
	})
	a.registry.Start()

	// 4. Notification bridge
	a.bridge = notifications.NewBridge(a.repo, a.redis)
	a.bridge.Attach(a.bus)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.bridge.Run(ctx)
	}()

	// 5. Realtime SSE broker
	a.broker = realtime.NewBroker()
	go a.broker.Run()
	a.broker.BridgeBus(a.bus)

	// 6. Connectivity monitor
	if a.config.HeartbeatWSURL != "" {
		a.monitor = connectivity.NewMonitor(a.config.HeartbeatWSURL, a.registry.SetOnline)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.monitor.Run(ctx)
		}()
	} else {
		log.Println("ℹ️  No heartbeat URL configured, assuming always online")
	}

	// 7. API server
	apiServer := api.NewServer(a.registry, a.broker, a.repo)
	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API server failed: %v", err)
		}
	}()

	// 8. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.monitor != nil {
			fmt.Println("📡 Closing heartbeat connection...")
			a.monitor.Close()
		}

		if a.bridge != nil {
			a.bridge.Detach()
		}

		if a.registry != nil {
			fmt.Println("🌌 Destroying chart sync registry...")
			a.registry.Destroy()
		}

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
