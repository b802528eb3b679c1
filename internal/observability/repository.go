package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	repoMetricsOnce sync.Once
	repoCounter     metric.Int64Counter
)

// RecordRepositoryOperation counts storage-layer operations by entity,
// operation and outcome (success, not_found, error).
func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	repoMetricsOnce.Do(func() {
		counter, err := otel.Meter("smarthub-identity").Int64Counter("repository.operations")
		if err == nil {
			repoCounter = counter
		}
	})
	if repoCounter == nil {
		return
	}
	repoCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
