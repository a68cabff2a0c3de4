package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ghostspeak"

// Metrics holds the engine's metric instruments.
type Metrics struct {
	EscrowsCreated   metric.Int64Counter
	EscrowsSettled   metric.Int64Counter
	EscrowsDisputed  metric.Int64Counter
	PaymentsRecorded metric.Int64Counter
	PaymentsDropped  metric.Int64Counter
	GuardRejections  metric.Int64Counter
	SettleDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EscrowsCreated, err = meter.Int64Counter("ghostspeak.escrows.created",
		metric.WithDescription("Number of escrows opened"))
	if err != nil {
		return nil, err
	}

	m.EscrowsSettled, err = meter.Int64Counter("ghostspeak.escrows.settled",
		metric.WithDescription("Number of escrows reaching a terminal state"))
	if err != nil {
		return nil, err
	}

	m.EscrowsDisputed, err = meter.Int64Counter("ghostspeak.escrows.disputed",
		metric.WithDescription("Number of disputes filed"))
	if err != nil {
		return nil, err
	}

	m.PaymentsRecorded, err = meter.Int64Counter("ghostspeak.payments.recorded",
		metric.WithDescription("Number of x402 attestations applied to scores"))
	if err != nil {
		return nil, err
	}

	m.PaymentsDropped, err = meter.Int64Counter("ghostspeak.payments.dropped",
		metric.WithDescription("Number of duplicate or invalid attestations dropped"))
	if err != nil {
		return nil, err
	}

	m.GuardRejections, err = meter.Int64Counter("ghostspeak.guard.rejections",
		metric.WithDescription("Operations rejected by a safety guard"))
	if err != nil {
		return nil, err
	}

	m.SettleDuration, err = meter.Float64Histogram("ghostspeak.settle.duration_seconds",
		metric.WithDescription("Settlement transaction duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
