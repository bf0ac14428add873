package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ModelMetrics tracks model round trips: call counts, latency, and token
// consumption split by direction. All record methods are safe on a nil
// receiver so callers can leave metrics unwired.
type ModelMetrics struct {
	callCounter  metric.Int64Counter
	tokenCounter metric.Int64Counter
	callLatency  metric.Float64Histogram
}

// NewModelMetrics creates the model instruments on the global meter provider.
func NewModelMetrics() (*ModelMetrics, error) {
	meter := otel.Meter("agentflow/model")

	callCounter, err := meter.Int64Counter(
		"agentflow.model.calls",
		metric.WithDescription("Model generate calls by provider, model, and outcome"),
	)
	if err != nil {
		return nil, err
	}

	tokenCounter, err := meter.Int64Counter(
		"agentflow.model.tokens",
		metric.WithDescription("Tokens consumed by provider, model, and direction"),
	)
	if err != nil {
		return nil, err
	}

	callLatency, err := meter.Float64Histogram(
		"agentflow.model.duration",
		metric.WithDescription("Model generate latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ModelMetrics{
		callCounter:  callCounter,
		tokenCounter: tokenCounter,
		callLatency:  callLatency,
	}, nil
}

// RecordCall counts one completed generate round trip and its latency. The
// outcome attribute is "ok" or "error" depending on err.
func (mm *ModelMetrics) RecordCall(ctx context.Context, provider, model string, elapsed time.Duration, err error) {
	if mm == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("model.provider", provider),
		attribute.String("model.name", model),
		attribute.String("outcome", outcome),
	)
	mm.callCounter.Add(ctx, 1, attrs)
	mm.callLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTokens counts prompt and completion tokens for one round trip.
func (mm *ModelMetrics) RecordTokens(ctx context.Context, provider, model string, prompt, completion int64) {
	if mm == nil {
		return
	}

	if prompt > 0 {
		mm.tokenCounter.Add(ctx, prompt,
			metric.WithAttributes(
				attribute.String("model.provider", provider),
				attribute.String("model.name", model),
				attribute.String("direction", "input"),
			),
		)
	}
	if completion > 0 {
		mm.tokenCounter.Add(ctx, completion,
			metric.WithAttributes(
				attribute.String("model.provider", provider),
				attribute.String("model.name", model),
				attribute.String("direction", "output"),
			),
		)
	}
}
