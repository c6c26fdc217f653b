package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"storefront/auth"
	"storefront/config"
	"storefront/events"
	"storefront/handler"
	"storefront/imagestore"
	"storefront/service"
	"storefront/store"
)

//go:embed migrations.sql
var migrationSQL string

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, migrationSQL); err != nil {
		log.Fatalf("Failed running migrations: %v", err)
	}
	log.Println("Database migrations executed successfully")

	// --- Images ---
	backend, err := imagestore.NewBackend(cfg)
	if err != nil {
		log.Fatalf("Image backend: %v", err)
	}
	gateway := imagestore.NewGateway(backend, cfg.ImageTimeout, nil)

	var orphans service.OrphanQueue = events.Discard{}
	if cfg.RabbitMQURL != "" {
		pool, err := events.NewChannelPool(cfg.RabbitMQURL, cfg.ReleaseQueue, cfg.ChannelPoolSize)
		if err != nil {
			log.Printf("RabbitMQ unavailable, failed image releases will only be logged: %v", err)
		} else {
			defer pool.Close()
			orphans = events.NewPublisher(pool, cfg.ReleaseQueue)
		}
	}

	// --- Auth ---
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiration, nil)
	if err != nil {
		log.Fatalf("Token issuer: %v", err)
	}

	// --- Service ---
	svc := service.NewService(st,
		service.WithImages(gateway),
		service.WithOrphanQueue(orphans),
		service.WithTokens(tokens),
	)
	if cfg.SeedCatalog {
		if _, err := svc.SeedCatalog(ctx); err != nil {
			log.Fatalf("Seeding catalog failed: %v", err)
		}
	}

	// --- Router ---
	r := mux.NewRouter()
	r.Use(handler.Logging(nil))
	handler.NewHandler(svc, tokens, nil).RegisterRoutes(r)
	if cfg.ImageBackend == config.BackendDisk {
		handler.RegisterUploads(r, cfg.UploadDir)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.CORS(cfg.CORSOrigin, r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
