package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
	"github.com/miyamoto-labs/easypoly/handlers"
	"github.com/miyamoto-labs/easypoly/storage"
	"github.com/miyamoto-labs/easypoly/syncer"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("EASYPOLY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := storage.NewPostgres()
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer store.Close()

	apiClient := api.NewClient(api.ClientOptions{
		DataURL:        cfg.API.DataURL,
		GammaURL:       cfg.API.GammaURL,
		MaxConcurrent:  cfg.API.MaxConcurrent,
		MinInterval:    time.Duration(cfg.API.RequestDelayMS) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.API.RequestTimeoutMS) * time.Millisecond,
	})

	// Background loops: discovery, copy signals, roster cleanup
	worker := syncer.NewWorker(cfg, apiClient, store)
	worker.Start()
	defer worker.Stop()
	log.Printf("[main] worker started (discovery every %dm, signals every %dm)",
		cfg.Discovery.ScanIntervalMins, cfg.Signals.CheckIntervalMins)

	r := gin.Default()
	handlers.NewHandler(store).Register(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}
}
