package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"farm-monitor-agent/config"
	"farm-monitor-agent/internal/api"
	"farm-monitor-agent/internal/auth"
	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/db"
	"farm-monitor-agent/internal/notification"
	"farm-monitor-agent/internal/poller"
	"farm-monitor-agent/internal/stores"
	"farm-monitor-agent/internal/token"
)

func main() {
	logger := log.New(os.Stdout, "farmmond ", log.LstdFlags)

	// Credentials are usually supplied through a .env file next to the binary.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("could not load .env file: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		logger.Fatalf("upstream credentials must be configured (FM_USERNAME and FM_PASSWORD, or the auth section of the config file)")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := token.NewStore(gormDB)
	apiClient := client.New(cfg.API, tokens)
	authMgr := auth.NewManager(tokens, apiClient)

	deviceStore := stores.NewDeviceStore(apiClient)
	deviceUpdateStore := stores.NewDeviceUpdateStore(apiClient)
	grainbinStore := stores.NewGrainbinStore(apiClient)
	grainbinUpdateStore := stores.NewGrainbinUpdateStore(apiClient)

	var workerPool *notification.WorkerPool
	if webpushOptions != nil {
		workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
	}

	pollerSvc := poller.NewService(
		cfg, authMgr,
		deviceStore, deviceUpdateStore,
		grainbinStore, grainbinUpdateStore,
		workerPool,
	)
	go pollerSvc.Run(ctx)

	handler := api.NewHandler(
		gormDB, authMgr,
		deviceStore, deviceUpdateStore,
		grainbinStore, grainbinUpdateStore,
		webpushOptions,
	)
	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
