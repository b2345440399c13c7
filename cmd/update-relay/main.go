package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-update-relay/update-relay/internal/cache"
	fscache "github.com/go-update-relay/update-relay/internal/cache/firestore"
	"github.com/go-update-relay/update-relay/internal/cache/memory"
	s3cache "github.com/go-update-relay/update-relay/internal/cache/s3"
	"github.com/go-update-relay/update-relay/internal/config"
	"github.com/go-update-relay/update-relay/internal/metrics"
	"github.com/go-update-relay/update-relay/internal/release"
	"github.com/go-update-relay/update-relay/internal/server"
	"github.com/sirupsen/logrus"
)

var version = "dev"

// setupCache returns the configured store and locker. The closer releases
// backend connections and may be nil.
func setupCache(ctx context.Context, log *logrus.Logger, cfg *config.ServerConfig) (cache.Store, cache.Locker, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendFirestore:
		log.Println("connecting to firestore...")
		db, err := cfg.CreateFirestoreClient(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		store := fscache.NewStore(db, cfg.FirestoreCollectionPrefix, cfg.CacheTTL)
		locker := fscache.NewLocker(db, cfg.FirestoreCollectionPrefix, cfg.LockTimeout, cfg.LockRetryDelay)
		return store, locker, db, nil
	case config.CacheBackendS3:
		log.Println("setting up S3 client...")
		s3Client, err := cfg.CreateS3Client(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Warn("the s3 cache backend has no distributed lock, concurrent misses are only serialized within this process")
		return s3cache.NewStore(s3Client, cfg.CloudflareR2Bucket, cfg.CacheTTL), memory.NewLocker(cfg.LockTimeout), nil, nil
	default:
		return memory.NewStore(cfg.CacheTTL), memory.NewLocker(cfg.LockTimeout), nil, nil
	}
}

func run(log *logrus.Logger, cfg *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.DisableMetrics {
		log.Println("setting up metrics exporter...")
		exporter, err := metrics.NewExporter(cfg.ProjectID, cfg.Stage)
		if err != nil {
			return err
		}
		defer func() {
			exporter.StopMetricsExporter()
			exporter.Flush()
		}()
	} else if err := metrics.RegisterViews(); err != nil {
		return err
	}

	log.Println("setting up GitHub client...")
	httpClient := cfg.CreateRetryableClient()
	ghClient, err := cfg.CreateGitHubClient(httpClient)
	if err != nil {
		return err
	}
	if cfg.GitHubToken == "" {
		log.Warn("no GitHub token configured, requests are subject to anonymous rate limits")
	}

	log.Printf("setting up %s cache...", cfg.CacheBackend)
	store, locker, closer, err := setupCache(ctx, log, cfg)
	if err != nil {
		return err
	}

	resolver := release.NewResolver(log, ghClient, httpClient, cfg.DownloadBaseURL, config.ReleasePins)
	coordinator := cache.NewCoordinator(log, store, locker, resolver)

	log.Println("starting server...")
	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           server.New(log, coordinator, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error(err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()

	log.Println("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); errors.Is(err, context.DeadlineExceeded) {
		log.Println("closing server...")
		if closeErr := srv.Close(); closeErr != nil {
			return closeErr
		}
	} else if err != nil {
		return err
	}

	if closer != nil {
		log.Println("closing cache backend...")
		if err := closer.Close(); err != nil {
			log.Error(err)
		}
	}
	log.Println("server stopped!")
	return nil
}

func main() {
	cfg, err := config.NewServerConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Version = version
	log := cfg.CreateLogger()
	log.Infof("starting update-relay (version=%s, stage=%s)", version, cfg.Stage)
	if err := run(log, cfg); err != nil {
		log.Fatal(err)
	}
}
