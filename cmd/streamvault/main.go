package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/config"
	"github.com/voyagen/streamvault/internal/epg"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/notify"
	"github.com/voyagen/streamvault/internal/proxy"
	"github.com/voyagen/streamvault/internal/server"
	"github.com/voyagen/streamvault/internal/store"
	catsync "github.com/voyagen/streamvault/internal/sync"
	"github.com/voyagen/streamvault/internal/tmdb"
	"github.com/voyagen/streamvault/internal/xtream"
)

const epgSchedulerTick = time.Minute

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	ctx := context.Background()

	// Run migrations.
	absMigrations, err := filepath.Abs("migrations")
	if err != nil {
		absMigrations = "migrations"
	}
	if _, err := os.Stat(absMigrations); err != nil {
		if exe, e := os.Executable(); e == nil {
			absMigrations = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	if err := store.RunMigrations(cfg.DatabaseURL, "file://"+absMigrations); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	// Connect to Redis if REDIS_URL is configured; everything it backs has
	// an in-process fallback.
	var rds *cache.Redis
	var appStore store.Store = pg
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "redis ping: %v\n", err)
			os.Exit(1)
		}

		appStore = store.NewCachedStore(pg, rds, log)
		log.Info("redis connected (caching, locks and job queue enabled)")
	} else {
		log.Info("redis disabled (REDIS_URL not set)")
	}

	var enricher *tmdb.Client
	if cfg.TMDBToken != "" {
		enricher = tmdb.NewClient(cfg.TMDBToken)
		log.Info("metadata enrichment enabled (TMDB)")
	} else {
		log.Info("metadata enrichment disabled (TMDB_TOKEN not set)")
	}

	clientFactory := func(p *models.Provider) catsync.CatalogClient {
		return xtream.New(p.BaseURL, p.Username, p.Password,
			xtream.WithUserAgent(cfg.UserAgent),
			xtream.WithTimeout(cfg.Timeout))
	}

	orchCfg := catsync.Config{
		Store:         appStore,
		Log:           log,
		ClientFactory: clientFactory,
		TMDB:          enricher,
		SyncTimeout:   cfg.SyncTimeout,
	}
	if rds != nil {
		orchCfg.Sink = &notify.RedisSink{Redis: rds}
		orchCfg.Locker = &catsync.RedisLocker{Redis: rds}
		orchCfg.Jobs = &catsync.RedisJobs{Redis: rds, Store: appStore}
	}
	orch := catsync.New(orchCfg)

	guide := &epg.Service{
		Store:  appStore,
		Redis:  rds,
		Log:    log,
		Cutoff: cfg.EPGCutoff,
		ClientFactory: func(p *models.Provider) epg.GuideClient {
			return xtream.New(p.BaseURL, p.Username, p.Password,
				xtream.WithUserAgent(cfg.UserAgent),
				xtream.WithTimeout(cfg.Timeout))
		},
	}

	byteCache := cache.NewByteCache(cfg.ProxyCacheTTL)
	streamProxy := proxy.New(byteCache, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepStop := make(chan struct{})
	go byteCache.SweepLoop(cfg.ProxySweepInterval, sweepStop)
	defer close(sweepStop)

	go guide.RunScheduler(ctx, epgSchedulerTick)

	// Detail jobs enqueued by sync runs are drained here when Redis is up.
	if rds != nil {
		go runDetailWorker(ctx, rds, orch, log)
	}

	srv := server.New(appStore, cfg, orch, guide, streamProxy, log)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// runDetailWorker continuously dequeues series-detail jobs from Redis and
// processes them. It stops when ctx is cancelled (graceful shutdown).
func runDetailWorker(ctx context.Context, rds *cache.Redis, orch *catsync.Orchestrator, log *logrus.Logger) {
	log.Info("detail worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("detail worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, cache.DetailQueue, 5*time.Second)
		if err != nil {
			log.WithError(err).Error("detail worker dequeue")
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue // timeout, loop back to check ctx
		}

		res, err := orch.RunDetailJob(ctx, *job)
		if err != nil {
			log.WithError(err).WithField("provider_id", job.ProviderID).Error("detail job failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"provider_id": job.ProviderID,
			"batch":       job.Batch,
			"series_ok":   res.SeriesOK,
			"failed":      res.SeriesFailed,
			"episodes":    res.Episodes,
		}).Info("detail job done")
	}
}
