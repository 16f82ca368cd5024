package cli

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docrepo/pkg/config"
	"github.com/nimburion/docrepo/pkg/observability/logger"
	"github.com/nimburion/docrepo/pkg/observability/metrics"
	"github.com/nimburion/docrepo/pkg/observability/tracing"
	"github.com/nimburion/docrepo/pkg/repository/document"
	"github.com/nimburion/docrepo/pkg/resilience"
	mongostore "github.com/nimburion/docrepo/pkg/store/mongodb"
	"github.com/nimburion/docrepo/pkg/version"
)

// runtime holds the connections a data command needs for its lifetime.
type runtime struct {
	cfg      *config.Config
	log      logger.Logger
	adapter  *mongostore.Adapter
	executor *document.MongoDBExecutor
	tracer   *tracing.TracerProvider
	metrics  *metrics.StoreMetrics
	registry *metrics.Registry
	breaker  *resilience.CircuitBreaker
}

func openRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*runtime, error) {
	log = log.WithContext(ctx)

	tracer, err := tracing.NewTracerProvider(ctx, tracerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.Database.URL,
		Database:         cfg.Database.DatabaseName,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		OperationTimeout: cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	executor, err := document.NewMongoDBExecutor(adapter)
	if err != nil {
		_ = adapter.Close()
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		log:      log,
		adapter:  adapter,
		executor: executor,
		tracer:   tracer,
	}
	if cfg.Query.BreakerMaxFailures > 0 {
		rt.breaker = document.NewStoreCircuitBreaker(cfg.Query.BreakerMaxFailures, cfg.Query.BreakerOpenTimeout)
	}
	if cfg.Observability.MetricsEnabled {
		rt.metrics = metrics.NewStoreMetrics()
		rt.registry = metrics.NewRegistry(rt.metrics.Collectors()...)
	}
	return rt, nil
}

func tracerConfig(cfg *config.Config) tracing.TracerConfig {
	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = cfg.Service.Name
	}
	return tracing.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.AppVersion,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	}
}

// collection opens a raw-document repository. Explicit search fields win
// over the ones configured for the collection.
func (rt *runtime) collection(name string, searchFields []string) (*document.Collection[bson.M], error) {
	if len(searchFields) == 0 {
		searchFields = rt.cfg.SearchableFieldsFor(name)
	}
	return document.NewCollection[bson.M](rt.executor, name, document.RawHydrator{},
		document.WithSearchableFields(searchFields...),
		document.WithLogger(rt.log),
		document.WithMetrics(rt.metrics),
		document.WithHydrateConcurrency(rt.cfg.Query.HydrateConcurrency),
		document.WithCircuitBreaker(rt.breaker),
	)
}

// writeMetrics dumps the collected store metrics; it is a no-op when metrics are disabled.
func (rt *runtime) writeMetrics(w io.Writer) error {
	if rt.registry == nil {
		return nil
	}
	return rt.registry.WriteText(w)
}

func (rt *runtime) close(ctx context.Context) {
	if err := rt.adapter.Close(); err != nil {
		rt.log.Warn("failed to close mongodb adapter", "error", err)
	}
	if err := rt.tracer.Shutdown(ctx); err != nil {
		rt.log.Warn("failed to shut down tracer provider", "error", err)
	}
}
