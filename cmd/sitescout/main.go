// sitescout is the HTTP orchestrator for the company discovery/profiling
// pipeline: Search, Discovery, Scrape, and Profile, backed by a durable
// Postgres job queue for the Discovery and Profile stages.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/api"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/database"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/llmpool"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/queue"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL, schema migrated")

	repo := orchestration.NewRepository(dbClient.DB())
	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		log.Fatalf("failed to initialize search client: %v", err)
	}
	llmPool := llmpool.NewPool(cfg.ProviderRegistry)

	discoveryStore := queue.NewStore(dbClient.DB(), "sitescout.queue_discovery")
	profileStore := queue.NewStore(dbClient.DB(), "sitescout.queue_profile")

	podID := uuid.New().String()
	if hostname, err := os.Hostname(); err == nil {
		podID = hostname + "-" + podID[:8]
	}

	discoveryExecutor := &orchestration.DiscoveryExecutor{
		Repo:     repo,
		Analyzer: &orchestration.DefaultDiscoveryAnalyzer{Pool: llmPool},
	}
	profileExecutor := &orchestration.ProfileExecutor{
		Repo:      repo,
		Extractor: &orchestration.DefaultProfileExtractor{Pool: llmPool},
	}

	discoveryPool := queue.NewWorkerPool(podID, "discovery", discoveryStore, cfg.DiscoveryQueue, discoveryExecutor)
	profilePool := queue.NewWorkerPool(podID, "profile", profileStore, cfg.ProfileQueue, profileExecutor)

	if err := discoveryPool.Start(ctx); err != nil {
		log.Fatalf("failed to start discovery worker pool: %v", err)
	}
	if err := profilePool.Start(ctx); err != nil {
		log.Fatalf("failed to start profile worker pool: %v", err)
	}

	srv := api.NewServer(cfg, dbClient, repo, searchClient, llmPool, discoveryStore, profileStore, discoveryPool, profilePool)

	go func() {
		slog.Info("starting HTTP server", "addr", *httpAddr, "pod_id", podID)
		if err := srv.Start(*httpAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	discoveryPool.Stop()
	profilePool.Stop()

	slog.Info("server stopped")
}
