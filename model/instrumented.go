package model

import (
	"context"
	"time"

	"github.com/agentflow/agentflow/telemetry"
)

// InstrumentedModel decorates any Model with call, latency, and token
// instruments. Responses and errors pass through unchanged, so it can wrap a
// provider adapter transparently wherever a Model is accepted.
type InstrumentedModel struct {
	inner   Model
	metrics *telemetry.ModelMetrics
}

// NewInstrumentedModel wraps inner. A nil metrics handle keeps the
// pass-through behavior and records nothing.
func NewInstrumentedModel(inner Model, metrics *telemetry.ModelMetrics) *InstrumentedModel {
	return &InstrumentedModel{inner: inner, metrics: metrics}
}

// Generate implements Model. The round trip is measured from the call until
// both inner channels close, and token usage is taken from the last response
// that reports it.
func (m *InstrumentedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	start := time.Now()
	innerResp, innerErr := m.inner.Generate(ctx, req)

	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		info := m.inner.Info()
		var usage *TokenUsage
		var callErr error

		for innerResp != nil || innerErr != nil {
			select {
			case resp, ok := <-innerResp:
				if !ok {
					innerResp = nil
					continue
				}
				if resp.Usage != nil {
					usage = resp.Usage
				}
				select {
				case out <- resp:
				case <-ctx.Done():
					callErr = ctx.Err()
					innerResp, innerErr = nil, nil
				}
			case err, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}
				if err != nil {
					callErr = err
					errCh <- err
				}
			}
		}

		m.metrics.RecordCall(ctx, info.Provider, info.Name, time.Since(start), callErr)
		if usage != nil {
			m.metrics.RecordTokens(ctx, info.Provider, info.Name,
				int64(usage.PromptTokens), int64(usage.CompletionTokens))
		}
	}()

	return out, errCh
}

// Info implements Model by delegating to the wrapped implementation.
func (m *InstrumentedModel) Info() Info { return m.inner.Info() }
