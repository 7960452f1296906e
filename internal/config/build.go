package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sempasha/super-dns-lookup/internal/metrics"
	"github.com/sempasha/super-dns-lookup/internal/mlog"
	"github.com/sempasha/super-dns-lookup/internal/persist"
	"github.com/sempasha/super-dns-lookup/pkg/hostsfile"
	"github.com/sempasha/super-dns-lookup/pkg/lookup"
	"github.com/sempasha/super-dns-lookup/pkg/resolver"
	"github.com/sempasha/super-dns-lookup/pkg/throttle"
)

// Built is every long-lived object Build assembles from a Config: the
// Controller ready for Bootstrap, plus the logger and metrics registry
// cmd/lookupctl's "serve" command needs to run the process.
type Built struct {
	Controller *lookup.Controller
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	httpAddr   string
}

// MetricsHandler returns the HTTP handler cmd/lookupctl's optional
// "api.http" listener mounts at /metrics.
func (b *Built) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{})
}

// HTTPAddr returns the configured metrics/pprof listen address, empty if
// the "api" section left it unset.
func (b *Built) HTTPAddr() string { return b.httpAddr }

// Build turns a loaded Config into a ready-to-Bootstrap Controller and its
// supporting logger/registry, the same "config section selects an
// implementation" wiring coremain.RunMosdns does for its own plugin list,
// collapsed here to this module's fixed set of collaborators.
func Build(cfg *Config) (*Built, error) {
	logger, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	if len(cfg.Resolvers) == 0 {
		return nil, fmt.Errorf("build: at least one resolver address is required")
	}
	resolverPool := resolver.NewPool(cfg.Resolvers, ResolverTimeout)

	hostsSource := hostsfile.New(cfg.Hosts.Path, logger)

	sink, err := buildSink(cfg.Persistence, logger)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	var thr *throttle.Throttle
	if cfg.Throttle.QPS > 0 {
		thr = throttle.New(cfg.Throttle.QPS, cfg.Throttle.Burst)
	}

	controller := lookup.NewController(lookup.ControllerOptions{
		Resolver: resolverPool,
		Hosts:    hostsSource,
		Cache:    lookup.NewCache(cfg.Cache.Size, cfg.Cache.Shards, func() { m.CacheEvicted("answers") }),
		Throttle: thr,
		Persist:  sink,
		Metrics:  m,
		Log:      logger,
	})

	return &Built{
		Controller: controller,
		Logger:     logger,
		Registry:   reg,
		httpAddr:   cfg.API.HTTP,
	}, nil
}

func buildSink(cfg PersistenceConfig, logger *zap.Logger) (persist.Sink, error) {
	switch cfg.Backend {
	case PersistenceFile:
		return persist.NewFileSink(cfg.Path), nil
	case PersistenceRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return persist.NewRedisSink(persist.RedisSinkOpts{
			Client:        client,
			ClientCloser:  client,
			ClientTimeout: 500 * time.Millisecond,
			Logger:        logger,
		})
	default: // PersistenceNone, ""
		return nil, nil
	}
}
