// Package tracing contains the attribute keys and helpers shared by the
// components that emit OpenTelemetry spans and metrics.
package tracing

import (
	"context"

	"github.com/dogmatiq/processkit/envelope"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// InstrumentationName is the name of the instrumentation scope used for
// every tracer and meter.
const InstrumentationName = "github.com/dogmatiq/processkit"

var (
	// CommandKindKey is an attribute key for the kind of a command.
	CommandKindKey = attribute.Key("processkit.command.kind")

	// CommandIDKey is an attribute key for the ID of a command.
	CommandIDKey = attribute.Key("processkit.command.id")

	// ReplyChannelKey is an attribute key for the reply channel token of a
	// command.
	ReplyChannelKey = attribute.Key("processkit.reply_channel")

	// OutcomeKey is an attribute key for the outcome of a command.
	OutcomeKey = attribute.Key("processkit.outcome")
)

const (
	// OutcomeSuccess is the outcome of a command that succeeded.
	OutcomeSuccess = "success"

	// OutcomeRemoteError is the outcome of a command that failed on the
	// process engine.
	OutcomeRemoteError = "remote-error"

	// OutcomeTimeout is the outcome of a command that received no result.
	OutcomeTimeout = "timeout"

	// OutcomeDispatchFailed is the outcome of a command that could not be
	// published.
	OutcomeDispatchFailed = "dispatch-failed"

	// OutcomeCanceled is the outcome of a command whose caller stopped
	// waiting.
	OutcomeCanceled = "canceled"

	// OutcomeMalformedResult is the outcome of a command whose result could
	// not be decoded.
	OutcomeMalformedResult = "malformed-result"
)

// CommandAttributes returns the standard attributes describing a command
// envelope.
func CommandAttributes(env envelope.Command) []attribute.KeyValue {
	return []attribute.KeyValue{
		CommandKindKey.String(string(env.Payload.Kind())),
		CommandIDKey.String(env.ID),
		ReplyChannelKey.String(env.ReplyChannel),
	}
}

// Inject adds the trace context of ctx to the given message headers.
func Inject(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// Extract returns a copy of ctx carrying the trace context found in the given
// message headers.
func Extract(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
