package main

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/config"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/health"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/keystore"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/sender"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/storage"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/storage/mongodb"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/delivery"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/reachability"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/transport"
)

// app is the wired service and the resources to release after a command
type app struct {
	service *sender.Service
	health  *health.Registry
	logger  *slog.Logger
	closers []func(context.Context) error
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown failed", "error", err)
		}
	}
}

// newLogger builds the slog logger selected by the logging section
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	a := &app{logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.health = health.NewRegistry(reg, logger)

	pair, err := keystore.LoadFromConfig(cfg.Keystore)
	if err != nil {
		return nil, err
	}
	info := keystore.Describe(pair, cfg.Keystore.Alias)
	logger.Info("signing key loaded",
		"alias", info.Alias,
		"subject", info.CertificateSubject,
		"not_after", info.NotAfter)
	if info.Expired(time.Now()) {
		a.health.SetUnhealthy("keystore", "signing certificate outside its validity period")
	} else {
		a.health.SetHealthy("keystore")
	}

	signer, err := security.NewEnvelopeSigner(pair)
	if err != nil {
		return nil, err
	}
	var mapper *delivery.Mapper
	if cfg.SenderConfigured() {
		mapper, err = delivery.NewMapper(signer, cfg.Sender.OrganizationNumber, cfg.Sender.Name,
			delivery.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("sender not configured, deliveries are disabled")
	}

	httpsConfig, err := newHTTPSConfig(cfg.Endpoints)
	if err != nil {
		return nil, err
	}
	client := transport.NewHTTPSClient(httpsConfig, logger)

	store, err := newStore(ctx, cfg.Storage.MongoDB, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	if cfg.Observability.Metrics.Enabled {
		a.closers = append(a.closers, serveMetrics(cfg.Observability, reg, logger))
	}

	a.service, err = sender.NewService(
		&sender.Config{
			ReachabilityURL:  cfg.Endpoints.ReachabilityURL,
			SenderConfigured: cfg.SenderConfigured(),
		},
		mapper,
		reachability.NewMapper(cfg.Sender.SupportedSuppliers, logger),
		client,
		store,
		a.health,
		sender.NewMetrics(reg),
		logger,
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func newHTTPSConfig(cfg config.EndpointsConfig) (*transport.HTTPSConfig, error) {
	c := transport.DefaultHTTPSConfig()
	c.Timeout = cfg.Timeout
	c.MaxRetries = cfg.MaxRetries
	c.RetryInterval = cfg.RetryInterval
	c.InsecureSkipVerify = cfg.TLS.Insecure

	if cfg.TLS.CAFile != "" {
		pem, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in CA file %s", cfg.TLS.CAFile)
		}
		c.RootCAs = pool
	}
	return c, nil
}

func newStore(ctx context.Context, cfg config.MongoDBConfig, logger *slog.Logger) (storage.DeliveryStore, error) {
	if cfg.URI == "" {
		logger.Debug("no MongoDB configured, keeping the delivery log in memory")
		return storage.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return mongodb.NewStore(ctx, &mongodb.Config{
		URI:        cfg.URI,
		Database:   cfg.Database,
		Collection: cfg.Collection,
	})
}

func serveMetrics(cfg config.ObservabilityConfig, reg *prometheus.Registry, logger *slog.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	return srv.Shutdown
}
