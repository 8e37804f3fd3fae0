package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckplanogram/internal/ai"
	"github.com/xelth-com/eckplanogram/internal/config"
	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/detection"
	"github.com/xelth-com/eckplanogram/internal/detection/gemini"
	"github.com/xelth-com/eckplanogram/internal/detection/roboflow"
	"github.com/xelth-com/eckplanogram/internal/handlers"
	scansvc "github.com/xelth-com/eckplanogram/internal/services/compliance"
	"github.com/xelth-com/eckplanogram/internal/services/odoo"
	"github.com/xelth-com/eckplanogram/internal/services/planogram"
	"github.com/xelth-com/eckplanogram/internal/utils"
	"github.com/xelth-com/eckplanogram/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Detection providers
	ctx := context.Background()
	registry, closeDetectors := buildDetectors(ctx, cfg.Detection)
	defer closeDetectors()

	// 5. Services and live events
	hub := websocket.NewHub()
	go hub.Run()

	planograms := planogram.NewService(db)
	planograms.SetEventPublisher(hub)

	scans := scansvc.NewService(planograms, registry, scansvc.NewRecorder(db), scansvc.Options{
		DetectTimeout:     cfg.Detection.Timeout,
		DisplayConfidence: cfg.Detection.DisplayConfidence,
		MaxImageSide:      cfg.Detection.MaxImageSide,
	})
	scans.SetEventPublisher(hub)

	router := handlers.NewRouter(handlers.Deps{
		DB:          db,
		Planograms:  planograms,
		Scans:       scans,
		Hub:         hub,
		JWTSecret:   cfg.JWTSecret,
		BaseURL:     cfg.BaseURL,
		FrontendDir: cfg.FrontendDir,
	})

	// 6. Start Odoo catalog sync (Background)
	odooService := odoo.NewSyncService(db, odoo.Config{
		URL:          cfg.Odoo.URL,
		Database:     cfg.Odoo.Database,
		Username:     cfg.Odoo.Username,
		Password:     cfg.Odoo.Password,
		SyncInterval: cfg.Odoo.SyncInterval,
	})
	odooService.Start()
	if cfg.Odoo.URL != "" {
		router.SetCatalogSync(odooService)
	}

	// 7. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Planogram server (%s) starting on port %s\n", cfg.NodeEnv, cfg.Port)
		for _, ip := range utils.GetLocalIPs() {
			log.Printf("   📡 http://%s:%s", ip, cfg.Port)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	odooService.Stop()
	hub.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// buildDetectors registers every provider that has credentials configured
func buildDetectors(ctx context.Context, cfg config.DetectionConfig) (*detection.Registry, func()) {
	registry := detection.NewRegistry()
	closers := []func(){}

	if cfg.RoboflowURL != "" {
		p, err := roboflow.NewProvider(roboflow.Config{
			URL:     cfg.RoboflowURL,
			APIKey:  cfg.RoboflowAPIKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			log.Printf("⚠️ Detection: Failed to init Roboflow provider: %v", err)
		} else if err := registry.Register(p); err == nil {
			log.Println("✅ Detection: Roboflow provider registered")
		}
	}

	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("⚠️ Detection: Failed to init Gemini client: %v", err)
		} else {
			closers = append(closers, client.Close)
			p, _ := gemini.NewProvider(client)
			if err := registry.Register(p); err == nil {
				log.Printf("✅ Detection: Gemini provider registered (%s)", client.ModelName())
			}
		}
	}

	if registry.Has(cfg.DefaultProvider) {
		registry.SetDefault(cfg.DefaultProvider)
	} else if len(registry.List()) > 0 {
		log.Printf("⚠️ Detection: default provider %q not available, scans must name a provider", cfg.DefaultProvider)
	} else {
		log.Println("⚠️ Detection: no provider configured, scans will be rejected")
	}

	return registry, func() {
		for _, c := range closers {
			c()
		}
	}
}
