package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nexus/api/internal/ai"
	"nexus/api/internal/app"
	"nexus/api/internal/config"
	"nexus/api/internal/docstore"
	"nexus/api/internal/history"
	"nexus/api/internal/media"
	"nexus/api/internal/pdf"
	"nexus/api/internal/search"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := docstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	pgStore := docstore.NewPostgresStore(db)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	// Documents live in Redis when configured, otherwise in Postgres
	// alongside the profiles.
	var docs docstore.Store = pgStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for document storage")
		redisStore, err := docstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		docs = redisStore
	}

	pgfts := search.NewPgFTS(db)
	meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	searchService := search.NewService(meiliClient, pgfts)
	defer searchService.Close()
	go searchService.ReindexAllFromPG(ctx)

	mediaStore, err := media.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("minio connection failed: %v", err)
	}

	historyService := history.New(cfg.HistoryDir)
	aiClient := ai.New(cfg.AIGatewayURL, cfg.AIGatewayToken)
	pdfClient := pdf.New(cfg.PDFRenderURL)

	var mediaArg app.MediaStore
	if mediaStore != nil {
		mediaArg = mediaStore
	}
	service := app.New(cfg, pgStore, docs, historyService, searchService, aiClient, pdfClient, mediaArg)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Nexus API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
