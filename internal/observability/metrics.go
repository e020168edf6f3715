package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/garmage/API-CTC-finetuned"

// Metrics holds the transcription endpoint instruments.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	segments metric.Int64Counter
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	requests, err := meter.Int64Counter("transcribe.requests",
		metric.WithDescription("Transcription requests by response status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcribe.requests counter: %w", err)
	}
	duration, err := meter.Float64Histogram("transcribe.duration",
		metric.WithDescription("Duration of transcription requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcribe.duration histogram: %w", err)
	}
	segments, err := meter.Int64Counter("transcribe.segments",
		metric.WithDescription("Transcript records returned"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcribe.segments counter: %w", err)
	}
	return &Metrics{requests: requests, duration: duration, segments: segments}, nil
}

// RecordRequest records one finished request. A nil receiver is a no-op.
func (m *Metrics) RecordRequest(ctx context.Context, status int, d time.Duration, records int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("status", status))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
	if records > 0 {
		m.segments.Add(ctx, int64(records))
	}
}
