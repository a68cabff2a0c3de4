package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ghostspeak"

// StartSettleSpan starts a span covering one settlement transaction.
func StartSettleSpan(ctx context.Context, escrowID, provider string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "settle",
		trace.WithAttributes(
			attribute.String("escrow.id", escrowID),
			attribute.String("escrow.provider", provider),
		),
	)
}

// StartPaymentSpan starts a span for one x402 attestation.
func StartPaymentSpan(ctx context.Context, paymentID, merchant string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "payment",
		trace.WithAttributes(
			attribute.String("payment.id", paymentID),
			attribute.String("payment.merchant", merchant),
		),
	)
}
