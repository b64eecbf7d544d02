package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/sandeepkv93/session-guard/internal/config"
)

const meterName = "session-guard"

type appMetrics struct {
	sessionResolve metric.Int64Counter
	sessionSync    metric.Int64Counter
	authzDecision  metric.Int64Counter
	rateLimit      metric.Int64Counter
	repositoryOps  metric.Int64Counter
	tokenDecode    metric.Int64Counter
	roleCache      metric.Int64Counter
	authLogin      metric.Int64Counter
	authLogout     metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metrics     *appMetrics
)

// Instruments are bound to the global meter provider, which forwards to whatever
// provider InitMetrics installs later.
func instruments() *appMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		metrics = &appMetrics{
			sessionResolve: counter(meter, "session.resolve.events"),
			sessionSync:    counter(meter, "session.sync.flushes"),
			authzDecision:  counter(meter, "authz.decisions"),
			rateLimit:      counter(meter, "ratelimit.decisions"),
			repositoryOps:  counter(meter, "repository.operations"),
			tokenDecode:    counter(meter, "token.decode.events"),
			roleCache:      counter(meter, "role.cache.events"),
			authLogin:      counter(meter, "auth.login.attempts"),
			authLogout:     counter(meter, "auth.logout.attempts"),
		}
	})
	return metrics
}

func counter(meter metric.Meter, name string) metric.Int64Counter {
	c, err := meter.Int64Counter(name)
	if err != nil {
		slog.Warn("metric instrument unavailable", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

// InitMetrics installs the global meter provider. OTLP push and the Prometheus
// pull endpoint are independent readers; the returned handler is nil unless
// Prometheus is enabled.
func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	if !cfg.OTELMetricsEnabled && !cfg.MetricsPrometheusEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric resource: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTELMetricsEnabled {
		grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
		if cfg.OTELExporterOTLPInsecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval)),
		))
	}

	var handler http.Handler
	if cfg.MetricsPrometheusEnabled {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exporter))
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	logger.Info("otel metrics initialized", "otlp", cfg.OTELMetricsEnabled, "endpoint", cfg.OTELExporterOTLPEndpoint, "prometheus", cfg.MetricsPrometheusEnabled)
	return mp, handler, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func RecordSessionResolve(ctx context.Context, kind, outcome string) {
	instruments().sessionResolve.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func RecordSessionSync(ctx context.Context, outcome string) {
	instruments().sessionSync.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthzDecision(ctx context.Context, outcome, reason string) {
	instruments().authzDecision.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

func RecordRateLimitDecision(ctx context.Context, backend, outcome string) {
	instruments().rateLimit.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	instruments().repositoryOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func RecordTokenDecode(outcome string) {
	instruments().tokenDecode.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRoleCacheEvent(ctx context.Context, outcome string) {
	instruments().roleCache.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthLogin(provider, status string) {
	instruments().authLogin.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

func RecordAuthLogout(status string) {
	instruments().authLogout.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}
