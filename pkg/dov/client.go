// Package dov is the entry point of the library. A Client holds the
// process-level environment (HTTP session, object cache, hooks and the
// metadata registry) and hands out a Search per object family.
package dov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/cache/filecache"
	"github.com/geodov/godov/internal/cache/redisstore"
	"github.com/geodov/godov/internal/core/config"
	"github.com/geodov/godov/internal/core/httpclient"
	"github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/internal/engine"
	"github.com/geodov/godov/internal/hitevents"
	"github.com/geodov/godov/internal/invalidation/kafkaconsumer"
	"github.com/geodov/godov/internal/logger"
	"github.com/geodov/godov/internal/metadata"
	"github.com/geodov/godov/internal/worker"
	"github.com/geodov/godov/pkg/hooks"
)

// Version is reported in the user agent and in recorded archives.
const Version = "0.1.0"

type options struct {
	cfg        *config.Config
	log        *slog.Logger
	cache      cache.Cache
	hooks      []hooks.Hook
	metrics    *observability.Metrics
	transport  http.RoundTripper
	recordPath string
	replayPath string
}

type Option func(*options)

// WithConfig replaces the configuration loaded from the environment.
func WithConfig(cfg config.Config) Option { return func(o *options) { o.cfg = &cfg } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithCache replaces the cache built from the configuration.
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithHooks registers hooks after the built-in ones.
func WithHooks(hs ...hooks.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hs...) }
}

// WithMetrics counts searches, XML requests and upstream latency.
func WithMetrics(m *observability.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// WithRecorder records every remote response to a zip archive at path,
// written on Close.
func WithRecorder(path string) Option { return func(o *options) { o.recordPath = path } }

// WithReplay answers every remote request from the archive at path.
func WithReplay(path string) Option { return func(o *options) { o.replayPath = path } }

// Client is safe for concurrent searches.
type Client struct {
	cfg      config.Config
	log      *slog.Logger
	cache    cache.Cache
	hooks    *hooks.Bus
	registry *metadata.Registry
	engine   *engine.Engine
	metrics  *observability.Metrics
	closers  []io.Closer
}

// New builds a client. Without WithConfig the configuration is read with
// config.Load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var o options
	for _, f := range opts {
		f(&o)
	}

	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}

	log := o.log
	if log == nil {
		zl := logger.Build(logger.Config{
			Level:     cfg.LogLevel,
			Console:   cfg.LogConsole,
			Component: "godov",
		}, os.Stderr)
		log = logger.NewSlog(&zl)
	}

	c := &Client{cfg: cfg, log: log, cache: o.cache, metrics: o.metrics}
	if c.cache == nil {
		store, err := NewCache(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		c.cache = store
		if cl, ok := store.(io.Closer); ok {
			c.closers = append(c.closers, cl)
		}
	}

	bus := hooks.NewBus()
	if o.replayPath != "" {
		rp, err := hooks.OpenReplayer(o.replayPath)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		bus.Register(rp)
	}
	bus.Register(hooks.NewLogging(log))
	if o.metrics != nil {
		bus.Register(hooks.NewMetrics(o.metrics))
	}
	if cfg.Kafka.Brokers != "" {
		pub, err := hitevents.NewPublisher(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic, 0, log)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		k := hooks.NewKafka(pub)
		bus.Register(k)
		c.closers = append(c.closers, k)
	}
	if o.recordPath != "" {
		rec := hooks.NewRecorder(o.recordPath, Version)
		bus.Register(rec)
		c.closers = append(c.closers, rec)
	}
	for _, h := range o.hooks {
		bus.Register(h)
	}
	c.hooks = bus

	session := httpclient.New(httpclient.Options{
		Timeout:   cfg.HTTP.Timeout,
		Retries:   cfg.HTTP.Retries,
		UserAgent: "godov/" + Version,
		Metrics:   o.metrics,
		Transport: o.transport,
	})
	endpoints := ogc.Endpoints{Base: cfg.BaseURL}
	c.registry = metadata.NewRegistry(metadata.NewResolver(session, endpoints,
		metadata.WithHooks(bus), metadata.WithLogger(log)))
	c.engine = engine.New(engine.Options{
		HTTP:      session,
		Endpoints: endpoints,
		Registry:  c.registry,
		Cache:     c.cache,
		Hooks:     bus,
		Log:       log,
		Workers:   worker.Options{Workers: cfg.Fetch.Workers, Queue: cfg.Fetch.Queue},
	})

	log.DebugContext(ctx, "client ready", "base_url", cfg.BaseURL, "cache", cfg.Cache.Variant,
		"workers", cfg.Fetch.Workers, "version", Version)
	return c, nil
}

// NewCache builds the object cache named by cfg.Variant.
func NewCache(ctx context.Context, cfg config.CacheCfg) (cache.Cache, error) {
	switch cfg.Variant {
	case "none":
		return cache.None{}, nil
	case "plain":
		return filecache.NewPlain(cfg.Dir, cfg.MaxAge), nil
	case "gzip", "":
		return filecache.NewGzip(cfg.Dir, cfg.MaxAge), nil
	case "redis":
		s, err := redisstore.New(ctx, cfg.RedisAddr, cfg.MaxAge)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("dov: unknown cache variant %q", cfg.Variant)
	}
}

func (c *Client) Config() config.Config { return c.cfg }

// Cache exposes the object cache for maintenance (Clean, Remove, Invalidate).
func (c *Client) Cache() cache.Cache { return c.cache }

// Hooks is the bus every search reports to. Hooks may be added between
// searches.
func (c *Client) Hooks() *hooks.Bus { return c.hooks }

// WatchInvalidations drops cached object documents named by the update
// events on the configured Kafka topic. It blocks until ctx is done.
func (c *Client) WatchInvalidations(ctx context.Context) error {
	if c.cfg.Kafka.Brokers == "" || c.cfg.Kafka.InvalidationTopic == "" {
		return errors.New("dov: kafka brokers and invalidation topic are required")
	}
	consumer := kafkaconsumer.New(kafkaconsumer.FromKafka(c.cfg.Kafka), c.log, c.cache, c.metrics)
	return consumer.Start(ctx)
}

// Close writes a pending recording and releases the cache and event
// producer connections.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
