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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/camden-git/titlesnap/config"
	"github.com/camden-git/titlesnap/handlers"
	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
	"github.com/camden-git/titlesnap/realtime"
	"github.com/camden-git/titlesnap/recognition"
	"github.com/camden-git/titlesnap/services"
	"github.com/camden-git/titlesnap/tmdb"
	"github.com/camden-git/titlesnap/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := media.NewProcessor()
	pool := workers.NewNormalizePool(processor, lg.With("component", "normalize"), cfg.NormalizeQueueSize, cfg.NormalizeWorkers)

	recognizer := recognition.NewClient(recognition.Options{
		Endpoint: cfg.RecognitionEndpoint,
		APIKey:   cfg.RecognitionAPIKey,
		Model:    cfg.RecognitionModel,
		Prompt:   cfg.RecognitionPrompt,
		Timeout:  cfg.RecognitionTimeout,
		Logger:   lg.With("component", "recognition"),
	})

	// a nil lookup leaves titles unenriched instead of failing startup
	var lookup services.MediaLookup
	mediaDB, err := tmdb.NewClient(tmdb.Options{
		BaseURL:           cfg.MediaDBBaseURL,
		APIKey:            cfg.MediaDBAPIKey,
		ReadAccessToken:   cfg.MediaDBReadAccessToken,
		Language:          cfg.MediaDBLanguage,
		RequestsPerSecond: cfg.MediaDBRequestsPerSecond,
		Logger:            lg.With("component", "tmdb"),
	})
	switch {
	case errors.Is(err, tmdb.ErrNotConfigured):
		lg.Warn("media database credentials not set, lookups disabled")
	case err != nil:
		lg.Fatal("failed to create media database client", "error", err)
	default:
		lookup = mediaDB
	}

	hub := realtime.NewHub(lg.With("component", "realtime"))
	go hub.Run()

	sessions := services.NewSessions(cfg.SessionIdleTimeout)

	service := services.NewIdentifyService(pool, recognizer, lookup, cfg.MediaDBImageBaseURL, hub, lg.With("component", "identify"))

	router := handlers.NewRouter(handlers.RouterConfig{
		Identify: &handlers.IdentifyHandler{
			Service:            service,
			Log:                lg.With("component", "http"),
			MaxUploadBytes:     cfg.MaxUploadBytes,
			SourceFetchTimeout: cfg.SourceFetchTimeout,
			HTTPClient:         media.NewPublicHTTPClient(cfg.SourceFetchTimeout),
		},
		Sessions: sessions,
		Health: &handlers.HealthHandler{
			LookupAvailable: service.LookupAvailable(),
			PendingJobs:     pool.PendingCount,
			Sessions:        sessions.Len,
			Listeners:       hub.ClientCount,
		},
		Websocket:      hub.ServeWS,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RecognitionTimeout + cfg.SourceFetchTimeout + 15*time.Second,
	})

	serverAddr := ":" + cfg.Port
	fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
	lg.Info("server listening", "addr", serverAddr, "model", cfg.RecognitionModel, "lookup", lookup != nil)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RecognitionTimeout + cfg.SourceFetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sessions.RunJanitor(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		hub.Close()
		pool.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		lg.Error("server stopped with error", "error", err)
	}
}
