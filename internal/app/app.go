// Package app builds every runtime component from a [config.Config] and
// owns their shutdown.
//
// With redis.addr set the limiter, tracker, job queue and stage barrier live
// in Redis and any number of processes cooperate. Without it they live in
// process, which suits the CLI and tests.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/cache"
	"github.com/matzehuels/impactrefresh/pkg/classify"
	"github.com/matzehuels/impactrefresh/pkg/config"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/merge"
	"github.com/matzehuels/impactrefresh/pkg/observability/prometheus"
	"github.com/matzehuels/impactrefresh/pkg/pipeline"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/ratelimit"
	"github.com/matzehuels/impactrefresh/pkg/status"
	"github.com/matzehuels/impactrefresh/pkg/store/memory"
	"github.com/matzehuels/impactrefresh/pkg/store/mongo"
	"github.com/matzehuels/impactrefresh/pkg/store/postgres"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Logger *log.Logger

	Redis    redis.UniversalClient // nil when running in process
	Store    artifact.Store
	Cache    cache.Cache
	Limiter  ratelimit.Limiter
	Tracker  status.Tracker
	Queue    jobqueue.Queue
	Barrier  jobqueue.Barrier
	Registry *provider.Registry
	Planner  *classify.Planner
	Merger   *merge.Merger
	Executor *pipeline.Executor
	Runner   *pipeline.Runner

	// Service dispatches runs to workers through the queue.
	Service *pipeline.Service
	// Local runs refreshes to completion in the calling goroutine.
	Local *pipeline.Service

	// Metrics is the Prometheus registry the hooks report to.
	Metrics *prom.Registry

	closers []func() error
}

// New connects and wires everything cfg describes. On error, whatever was
// already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (a *App, err error) {
	if logger == nil {
		logger = log.Default()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.Metrics = prom.NewRegistry()
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prometheus.NewCollector(a.Metrics).Install()

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.Redis.Close)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	if a.Store, err = openStore(ctx, cfg.Store); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if a.Cache, err = a.openCache(); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Cache.Close)

	prefix := cfg.Redis.Prefix
	if a.Redis != nil {
		a.Limiter = ratelimit.NewRedis(a.Redis, cfg.RateRules(), prefix)
		a.Tracker = status.NewRedis(a.Redis, cfg.Status.TTL, prefix)
		a.Queue = jobqueue.NewRedis(a.Redis, prefix)
		a.Barrier = jobqueue.NewRedisBarrier(a.Redis, prefix)
	} else {
		a.Limiter = ratelimit.NewMemory(cfg.RateRules(), nil)
		a.Tracker = status.NewMemory(cfg.Status.TTL, nil)
		a.Queue = jobqueue.NewMemory()
		a.Barrier = jobqueue.NewMemoryBarrier()
	}
	a.closers = append(a.closers, a.Queue.Close)

	a.Registry = provider.Build(cfg.Specs(), Factories(a.Cache, cfg.Cache.TTL), logger)
	logger.Debug("providers", "names", a.Registry.Names())
	a.Planner = classify.NewPlanner(a.Registry)
	a.Merger = merge.New(a.Store, merge.Options{Logger: logger})
	a.Executor = pipeline.NewExecutor(a.Registry, a.Store, a.Limiter, a.Merger, pipeline.ExecutorOptions{
		Retry:              cfg.RetryPolicy(),
		JobTimeout:         cfg.Worker.JobTimeout,
		Timeouts:           cfg.Timeouts(),
		ThrottleJitter:     cfg.Worker.ThrottleJitter,
		MaxThrottleRetries: cfg.Worker.MaxThrottleRetries,
		Logger:             logger,
	})
	a.Runner = pipeline.NewRunner(a.Executor, a.Tracker, pipeline.RunnerOptions{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      logger,
	})
	a.Service = pipeline.NewService(a.Store, a.Planner, a.Tracker,
		pipeline.QueueDispatcher{Queue: a.Queue, Barrier: a.Barrier}, pipeline.ServiceOptions{Logger: logger})
	a.Local = pipeline.NewService(a.Store, a.Planner, a.Tracker, a.Runner, pipeline.ServiceOptions{Logger: logger})
	return a, nil
}

// NewWorker returns a queue worker over the app's components.
func (a *App) NewWorker() *pipeline.Worker {
	return pipeline.NewWorker(a.Queue, a.Barrier, a.Executor, a.Tracker, pipeline.WorkerOptions{
		Concurrency: a.Config.Worker.Concurrency,
		Logger:      a.Logger,
	})
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (artifact.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return mongo.Open(ctx, mongo.Config{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection})
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.Config{URL: cfg.URI, Table: cfg.Table})
	case config.DriverMemory, "":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func (a *App) openCache() (cache.Cache, error) {
	cfg := a.Config.Cache
	var (
		c   cache.Cache
		err error
	)
	switch cfg.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheFile:
		dir := cfg.Dir
		if dir == "" {
			if dir, err = cache.DefaultDir(); err != nil {
				return nil, err
			}
		}
		c, err = cache.NewFileCache(dir)
	case config.CacheRedis:
		if a.Redis == nil {
			return nil, errors.New("redis cache requires redis.addr")
		}
		c = cache.NewRedisCache(a.Redis, a.Config.Redis.Prefix+"cache:")
	default:
		c, err = cache.NewLRUCache(cfg.Size)
	}
	if err != nil {
		return nil, err
	}
	return cache.Instrumented(c, cfg.Backend), nil
}
