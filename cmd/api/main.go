package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/config"
	"github.com/snappy-loop/wordtales/internal/handlers"
	"github.com/snappy-loop/wordtales/internal/history"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting WordTales API")

	aiConfig := cfg.AIConfig()
	if !aiConfig.HasKey() {
		log.Warn().Str("provider", string(aiConfig.Provider)).Msg("No API key configured; set one with PUT /api/config before searching")
	}

	store := history.NewStore(cfg.HistoryLimit)
	hub := handlers.NewHub()

	controller := pipeline.NewController(
		aiConfig,
		llm.NewFactory(cfg.ProviderOptions()),
		pipeline.WithRetryPolicy(cfg.RetryPolicy()),
		pipeline.WithImageInterval(cfg.ImageRequestInterval),
		// History is saved as soon as the text analysis succeeds, before any media request.
		pipeline.WithHooks(hub.Hooks(store.Save)),
	)

	baseCtx, cancelPipelines := context.WithCancel(context.Background())
	defer cancelPipelines()

	h := handlers.NewHandler(baseCtx, controller, store, hub)

	r := mux.NewRouter()
	h.Register(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     corsHandler.Handler(r),
		ReadTimeout: 15 * time.Second,
		// Image data URIs in GET /api/state can be large.
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	cancelPipelines()
	controller.Wait()
	log.Info().Msg("API exited")
}
