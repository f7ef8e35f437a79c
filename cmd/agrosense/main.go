package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"agrosense/internal/aggregator"
	"agrosense/internal/api"
	"agrosense/internal/dashboard"
	"agrosense/internal/database"
	"agrosense/internal/irrigation"
	"agrosense/internal/models"
	"agrosense/internal/mqtt"
	"agrosense/internal/notes"
	"agrosense/internal/prefs"
	"agrosense/internal/profiles"
	"agrosense/internal/realtime"
	"agrosense/internal/services"
	"agrosense/internal/threshold"
	"agrosense/pkg/config"
	"agrosense/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Println("Starting AgroSense dashboard service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Local persisted state ===
	prefStore, err := prefs.Open(cfg.PrefsDriver, cfg.PrefsDSN)
	if err != nil {
		logger.Fatalf("Failed to open preference store: %v", err)
	}
	defer prefStore.Close()

	seed, err := profiles.LoadSeedFile(cfg.ProfileSeedFile)
	if err != nil {
		logger.Fatalf("Failed to load crop profiles: %v", err)
	}
	profileStore := profiles.NewStore(prefStore, seed)
	noteStore := notes.NewStore(prefStore)

	// === Realtime store ===
	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// === Presentation pipeline ===
	policy, err := aggregator.ParseSignalPolicy(cfg.SignalMissingPolicy)
	if err != nil {
		logger.Fatalf("Invalid signal policy: %v", err)
	}
	normalizer := aggregator.NewNormalizer(aggregator.NormalizerConfig{
		SignalPolicy:   policy,
		SignalSentinel: cfg.SignalSentinel,
	})
	agg := aggregator.NewAggregator(normalizer)
	evaluator := threshold.NewEvaluator(nil)
	bridge := irrigation.NewBridge(store, cfg.StoreRoot, cfg.IrrigationPath)

	// === Optional ClickHouse archive ===
	var (
		archiveChan chan<- models.DeviceSeries
		averager    api.DailyAverager
	)
	if cfg.ArchiveEnabled {
		db, err := database.NewClickHouseDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			logger.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		defer db.Close()

		archiveService := services.NewArchiveService(db, services.DefaultArchiveServiceConfig())
		go archiveService.Start(ctx)

		archiveChan = archiveService.SeriesChan
		averager = db
	}

	// === Dashboard session ===
	session := dashboard.NewSession(store, agg, evaluator, nil, profileStore, bridge, dashboard.Config{
		Root:         cfg.StoreRoot,
		DevicePrefix: cfg.DevicePrefix,
		Archive:      archiveChan,
	})
	go session.Run(ctx)

	// === HTTP adapter ===
	if cfg.LogLevel != logger.DEBUG {
		gin.SetMode(gin.ReleaseMode)
	}
	sessionCfg := aggregator.DefaultSessionConfig()
	sessionCfg.Gap = cfg.SessionGap

	server := api.NewServer(session, profileStore, noteStore, prefStore, averager, api.Options{
		CORSOrigins:  cfg.CORSOrigins,
		ExportPrefix: cfg.ExportPrefix,
		Location:     cfg.Location(),
		Sessions:     sessionCfg,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	logger.Println("=== AgroSense dashboard is running ===")
	logger.Printf("Store backend: %s, root: %s", cfg.StoreBackend, cfg.StoreRoot)
	logger.Printf("HTTP listening on %s", cfg.HTTPAddr)
	logger.Printf("Archive enabled: %v", cfg.ArchiveEnabled)
	logger.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}

	cancel() // Cancel context to stop all goroutines

	// Give services time to finish processing
	time.Sleep(2 * time.Second)

	logger.Println("Shutdown complete. Goodbye!")
}

// openStore connects the configured realtime store backend
func openStore(ctx context.Context, cfg *config.Config) (realtime.Store, func()) {
	if cfg.StoreBackend == "memory" {
		logger.Warnf("Using in-memory realtime store; nothing is shared with devices")
		mem := realtime.NewMemoryStore()
		return mem, mem.Close
	}

	logger.Printf("Connecting to MQTT broker %s...", cfg.MQTTBroker)
	client, err := mqtt.NewClient(ctx, mqtt.ClientConfig{
		Broker:             cfg.MQTTBroker,
		ClientID:           cfg.MQTTClientID,
		Username:           cfg.MQTTUsername,
		Password:           cfg.MQTTPassword,
		ConnectMaxAttempts: cfg.ConnectMaxAttempts,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize MQTT client: %v", err)
	}

	store := mqtt.NewStore(client, mqtt.DefaultStoreConfig())
	return store, func() {
		store.Close()
		client.Close()
	}
}
