package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cleanistic/api"
	"cleanistic/config"
	"cleanistic/estimate"
	"cleanistic/httputil"
	"cleanistic/logging"
	"cleanistic/models"
	"cleanistic/providers"
	"cleanistic/scheduler"
	"cleanistic/services"
	"cleanistic/storage"
	"cleanistic/workers"
)

var (
	analyzeAddr = flag.String("analyze", "", "Analyze one property address, print the result and exit")
	imagePaths  = flag.String("images", "", "Comma separated image files for -analyze")
	serviceList = flag.String("services", "", "Comma separated services for -analyze (default from DEFAULT_SERVICES)")
)

const mediaQueueSize = 256

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(logging.Options{
		Path:     cfg.Log.Path,
		MaxBytes: cfg.Log.MaxBytes,
		Backups:  cfg.Log.Backups,
	})
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting cleanistic estimator...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	clients, err := httputil.NewClients(cfg)
	if err != nil {
		log.Fatalf("Failed to set up HTTP clients: %v", err)
	}
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	vision, err := providers.NewVisionProvider(cfg.Vision, clients.Vision)
	if err != nil {
		log.Fatalf("Failed to set up vision provider: %v", err)
	}
	lookup, err := providers.NewPropertyLookup(cfg.Lookup, clients.Lookup)
	if err != nil {
		log.Fatalf("Failed to set up property lookup: %v", err)
	}
	if closer, ok := lookup.(io.Closer); ok {
		defer closer.Close()
	}
	log.Printf("Providers: vision=%s lookup=%s", orDefault(cfg.Vision.Provider, "fixture"), orDefault(cfg.Lookup.Provider, "fixture"))

	var uploader workers.Uploader = workers.NewNoOpUploader()
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to set up S3 uploader: %v", err)
		}
		uploader = s3
		log.Printf("Archiving images to bucket %s", cfg.S3.Bucket)
	}
	mediaWorker := workers.NewMediaWorker(uploader, mediaQueueSize)

	engine := estimate.NewEngine(cfg.Pricing)
	mediaService := services.NewMediaService(cfg.S3, mediaWorker)
	analysisService := services.NewAnalysisService(store, vision, lookup, engine, mediaService, cfg.Analysis)
	quoteService := services.NewQuoteService(store, cfg.Quotes)
	reportService := services.NewReportService(store, mediaWorker)

	log.Println("Services initialized")

	// Handle one-shot commands
	if *analyzeAddr != "" {
		if err := runAnalyze(ctx, analysisService, cfg.Analysis.DefaultServices); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		mediaWorker.Drain(ctx)
		return
	}

	// Server mode
	go mediaWorker.Run(ctx)
	log.Println("Media worker started")

	sched := scheduler.New(cfg.Scheduler.ReportCron, reportService)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	handler := api.NewHandler(analysisService, quoteService, reportService, cfg.Analysis.DefaultServices)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Server running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Println("Using in-memory store")
		return storage.NewMemoryStore(), nil
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		return pg, nil
	case "sqlite", "":
		st, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		log.Printf("SQLite database: %s", cfg.DBPath)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func runAnalyze(ctx context.Context, svc *services.AnalysisService, defaultServices []string) error {
	var images []models.ImageInput
	for _, path := range splitFlag(*imagePaths) {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		images = append(images, models.ImageInput{Filename: filepath.Base(path), Data: data})
	}

	names := splitFlag(*serviceList)
	if len(names) == 0 {
		names = defaultServices
	}
	serviceTypes, err := services.ParseServices(names)
	if err != nil {
		return err
	}

	log.Printf("Analyzing %s (%d images)...", *analyzeAddr, len(images))
	analysis, err := svc.AnalyzeProperty(ctx, services.AnalysisRequest{
		Address:  *analyzeAddr,
		Images:   images,
		Services: serviceTypes,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}

func splitFlag(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start == -1 {
		return connStr
	}
	start += 3

	at := strings.LastIndex(connStr, "@")
	if at < start {
		return connStr
	}
	colon := strings.Index(connStr[start:at], ":")
	if colon == -1 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
