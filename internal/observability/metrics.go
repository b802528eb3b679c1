package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smarthubultra/identity-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	credentialIssuedCounter   metric.Int64Counter
	credentialRedeemedCounter metric.Int64Counter
	sessionCreatedCounter     metric.Int64Counter
	adminGrantCounter         metric.Int64Counter
	mailDeliveryCounter       metric.Int64Counter
	sweepRemovedCounter       metric.Int64Counter
	tokenValidationCounter    metric.Int64Counter
	rateLimitDecisionCounter  metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("smarthub-identity")
	issuedCounter, err := meter.Int64Counter("credential.issued")
	if err != nil {
		return nil, err
	}
	redeemedCounter, err := meter.Int64Counter("credential.redeemed")
	if err != nil {
		return nil, err
	}
	sessionCounter, err := meter.Int64Counter("session.created")
	if err != nil {
		return nil, err
	}
	grantCounter, err := meter.Int64Counter("admin.grants")
	if err != nil {
		return nil, err
	}
	mailCounter, err := meter.Int64Counter("mail.delivery.attempts")
	if err != nil {
		return nil, err
	}
	sweepCounter, err := meter.Int64Counter("sweep.removed")
	if err != nil {
		return nil, err
	}
	tokenCounter, err := meter.Int64Counter("auth.token.validations")
	if err != nil {
		return nil, err
	}
	rateLimitCounter, err := meter.Int64Counter("ratelimit.decisions")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		credentialIssuedCounter:   issuedCounter,
		credentialRedeemedCounter: redeemedCounter,
		sessionCreatedCounter:     sessionCounter,
		adminGrantCounter:         grantCounter,
		mailDeliveryCounter:       mailCounter,
		sweepRemovedCounter:       sweepCounter,
		tokenValidationCounter:    tokenCounter,
		rateLimitDecisionCounter:  rateLimitCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordCredentialIssued(namespace, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.credentialIssuedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("namespace", namespace),
			attribute.String("status", status),
		),
	)
}

func RecordCredentialRedeemed(namespace, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.credentialRedeemedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("namespace", namespace),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordSessionCreated(method string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.sessionCreatedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("method", method)))
}

func RecordAdminGrant(override bool) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.adminGrantCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("override", override)))
}

func RecordMailDelivery(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.mailDeliveryCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordSweepRemoved(kind string, count int64) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil || count == 0 {
		return
	}
	m.sweepRemovedCounter.Add(context.Background(), count, metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordTokenValidation(outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(scope, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		),
	)
}
