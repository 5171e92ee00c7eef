package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard-api/pkg/api"
	"taskboard-api/pkg/config"
	"taskboard-api/pkg/orm"
	"taskboard-api/pkg/task"
	"taskboard-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	debug := flag.Bool("debug", false, "sets log level to debug")
	trace := flag.Bool("trace", false, "sets log level to trace")
	memory := flag.Bool("memory", false, "keep tasks in memory instead of the configured store")
	flag.Parse()

	utils.LoadEnvFile()
	utils.SetupLogger(*debug, *trace)
	if !*debug && !*trace {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	cfg := config.Load()
	cfg.UseMemoryStore = *memory
	if err := cfg.ResolveSecrets(ctx, config.FetchAwsSecret); err != nil {
		exitOnConfigError(err)
	}
	if err := cfg.Validate(); err != nil {
		exitOnConfigError(err)
	}

	store, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open task store")
	}

	log.Info().Msgf("Allowed origins: %v", cfg.AllowedOrigins)
	router := api.NewEngine(task.NewTaskService(store), api.CorsConfig(cfg.AllowedOrigins))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msgf("Serving procedures under %s", api.BasePath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Msgf("Received signal: %s. Shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server Shutdown")
	}
	onShutdown(store)
	log.Info().Msg("Server exiting")
}

func onShutdown(store orm.Store) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close task store")
	}
}

func exitOnConfigError(err error) {
	var missing *config.MissingEnvError
	if errors.As(err, &missing) {
		for _, name := range missing.Names {
			fmt.Fprintf(os.Stderr, "Missing environment variable: %s\n", name)
		}
	}
	log.Error().Err(err).Msg("Invalid configuration")
	os.Exit(1)
}
