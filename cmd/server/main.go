package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"storyhub/internal/core"
	"storyhub/internal/events"
	"storyhub/internal/gateway"
	httpProtocol "storyhub/internal/protocols/http"
	wsProtocol "storyhub/internal/protocols/websocket"
	"storyhub/internal/repository"
	"storyhub/pkg/config"
	"storyhub/pkg/database"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

func main() {
	configPath := flag.String("config", "./configs/development.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})

	logger.Info("Starting StoryHub server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Users
	userRepo, closeUsers, err := openUserRepository(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open user database: %v", err)
	}
	defer closeUsers()

	// Documents and images
	docs, closeDocs, err := openDocumentStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open document store: %v", err)
	}
	defer closeDocs()

	localBlobs := repository.NewLocalBlobStore(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
	blobs := map[core.Transport]repository.BlobStore{core.TransportServer: localBlobs}
	if cfg.Blob.CloudinaryEnabled() {
		remote, err := repository.NewCloudinaryBlobStore(cfg.Blob.CloudinaryCloud, cfg.Blob.CloudinaryKey, cfg.Blob.CloudinarySecret, cfg.Blob.CloudinaryFolder)
		if err != nil {
			logger.Fatalf("Failed to configure Cloudinary: %v", err)
		}
		blobs[core.TransportDrive] = remote
		logger.Info("Remote uploads enabled (Cloudinary)")
	}

	gw := gateway.NewLocal(docs, localBlobs)

	// Catalog cache
	catalog := core.NewCatalog(gw)
	if err := catalog.Load(ctx); err != nil {
		// each document falls back to its default, so a partial load is not fatal
		logger.Warnf("Catalog loaded with errors: %v", err)
	}
	defer catalog.Teardown()
	logger.Infof("Catalog loaded: %d stories", len(catalog.Stories()))

	// Change events: websocket feed, plus AMQP when configured
	hub := wsProtocol.NewHub()
	defer hub.Stop()
	publishers := events.Multi{hub}
	if cfg.Events.AMQPURL != "" {
		ch, closeAMQP, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Queue)
		if err != nil {
			logger.Warnf("AMQP disabled: %v", err)
		} else {
			defer closeAMQP()
			publishers = append(publishers, events.NewAMQPPublisher(ch, cfg.Events.Queue))
			logger.Infof("Publishing chapter events to queue %s", cfg.Events.Queue)
		}
	}

	// Core services
	authSvc := core.NewAuthService(userRepo, core.AuthOptions{
		JWTSecret:     cfg.JWT.Secret,
		JWTIssuer:     cfg.JWT.Issuer,
		JWTExpiry:     cfg.JWT.Expiration,
		AutoProvision: cfg.Auth.AutoProvision,
	})
	if cfg.Auth.BootstrapAdminPassword != "" {
		if err := authSvc.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminPassword); err != nil {
			logger.Fatalf("Failed to create bootstrap admin: %v", err)
		}
	} else {
		logger.Warn("auth.bootstrap_admin_password is empty; the bootstrap admin is not created")
	}

	coord := core.NewCoordinator(gw, catalog, publishers, core.CoordinatorOptions{
		OptimisticWrites: cfg.Catalog.OptimisticWrites,
	})
	commentSvc := core.NewCommentService(gw, catalog, publishers)
	publishSvc := core.NewPublishService(catalog, coord, blobs, core.PublishOptions{
		Attempts:   cfg.Publish.Attempts,
		RetryDelay: cfg.Publish.RetryDelay,
		Events:     publishers,
	})
	projector := core.NewProjector(models.NewTaxonomy(cfg.Catalog.SensitiveTags), time.Now)

	logger.Info("Initialized all core services")

	httpServer := httpProtocol.NewServer(cfg, httpProtocol.Services{
		Gateway:   gw,
		Catalog:   catalog,
		Coord:     coord,
		Projector: projector,
		Auth:      authSvc,
		Comments:  commentSvc,
		Publish:   publishSvc,
		Feed:      wsProtocol.NewHandler(hub, authSvc, catalog, cfg.Server.AllowedOrigins),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(cfg.Addr())
	}()

	logger.Info("Press Ctrl+C to shutdown")

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Errorf("HTTP server error: %v", err)
		}
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	logger.Info("Shutdown complete")
}

// openUserRepository picks database/sql (sqlite or postgres) or a pgx pool when use_pgx is set
func openUserRepository(ctx context.Context, cfg *config.Config) (repository.UserRepository, func(), error) {
	dbCfg := database.Config{
		Driver:          cfg.Database.Driver,
		Path:            cfg.Database.Path,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		Timeout:         cfg.Database.Timeout,
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	if cfg.Database.Driver == database.DriverPostgres && cfg.Database.UsePGX {
		pool, err := database.NewPGXPool(dbCfg)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL database (pgx)")
		return repository.NewPGXUserRepository(pool), func() {
			pool.Close()
			db.Close()
		}, nil
	}

	logger.Infof("Connected to %s user database", cfg.Database.Driver)
	return repository.NewSQLUserRepository(db), func() { db.Close() }, nil
}

// openDocumentStore returns the flat-file store or the Redis store
func openDocumentStore(ctx context.Context, cfg *config.Config) (repository.DocumentStore, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Infof("Documents stored in Redis at %s", cfg.Redis.Addr)
		return repository.NewRedisStore(client, cfg.Redis.Prefix), func() { client.Close() }, nil
	default:
		store, err := repository.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("Documents stored in %s", cfg.Storage.DataDir)
		return store, func() {}, nil
	}
}
