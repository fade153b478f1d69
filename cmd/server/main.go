package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/edvart/wotc-admin/internal/auth"
	"github.com/edvart/wotc-admin/internal/blob"
	"github.com/edvart/wotc-admin/internal/config"
	"github.com/edvart/wotc-admin/internal/kv"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/edvart/wotc-admin/internal/tally"
	"github.com/edvart/wotc-admin/internal/web"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := cfg.NewLogger()

	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set. Admin login is disabled.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StoreBackend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize store
	records, err := kv.Open(ctx, cfg.StoreBackend, cfg.StoreURL())
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer records.Close()
	log.WithField("backend", cfg.StoreBackend).Info("Record store ready")

	db := store.NewKVStore(records)
	publisher := publish.NewManager(db, log)
	engine := tally.NewEngine(db, log)
	sessions := auth.NewSessionManager(db, cfg.AdminPassword, cfg.SecureCookies())

	// Logos go to Cloud Storage when a bucket is configured, else to local disk.
	var uploader blob.Uploader
	uploadDir := ""
	if cfg.BlobBucket != "" {
		gcs, err := blob.NewGCSUploader(ctx, cfg.BlobBucket)
		if err != nil {
			log.Fatalf("Failed to initialize blob storage: %v", err)
		}
		defer gcs.Close()
		uploader = gcs
	} else {
		uploadDir = cfg.UploadDir
		dir, err := blob.NewDirUploader(uploadDir, cfg.BaseURL+"/uploads")
		if err != nil {
			log.Fatalf("Failed to initialize upload dir: %v", err)
		}
		uploader = dir
	}

	templates, err := web.DefaultTemplates()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	server := web.NewServer(db, publisher, engine, sessions, uploader, templates, log, web.Config{
		DevMode:   cfg.DevMode,
		UploadDir: uploadDir,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Infof("Server running on %s", cfg.BaseURL)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Info("Server stopped")
}
