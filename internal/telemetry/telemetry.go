package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName identifies this package's tracer/meter.
	InstrumentationName = "github.com/aptos-labs/authcore/telemetry"

	// InstrumentationVersion is the version of this instrumentation.
	InstrumentationVersion = "1.0.0"
)

// Attribute keys used on the auth span and its child verifier spans.
const (
	AttrAccountID      = "authcore.account_id"
	AttrIdentityKind   = "authcore.identity_kind"
	AttrAction         = "authcore.action"
	AttrRequestID      = "authcore.request_id"
	AttrVerifierResult = "authcore.verifier_result"
	AttrErrorKind      = "authcore.error_kind"
)

// Metric names.
const (
	MetricAuthDuration   = "authcore.dispatch.auth.duration"
	MetricAuthCount      = "authcore.dispatch.auth.count"
	MetricAuthErrorCount = "authcore.dispatch.auth.error.count"
	MetricVerifyDuration = "authcore.verify.duration"
)

// Config holds the OpenTelemetry providers the Instrumentation uses. A zero
// Config falls back to the global providers, exactly as v2/telemetry's
// InstrumentedTransport does for its HTTP client.
type Config struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	DisableTracing bool
	DisableMetrics bool
}

// Instrumentation wraps the tracer, meter, and pre-registered instruments
// the dispatcher and verifiers record against.
type Instrumentation struct {
	cfg    Config
	tracer trace.Tracer
	meter  metric.Meter

	authDuration   metric.Float64Histogram
	authCount      metric.Int64Counter
	authErrorCount metric.Int64Counter
	verifyDuration metric.Float64Histogram
}

// New builds an Instrumentation from cfg, filling in global providers for
// any unset field.
func New(cfg Config) (*Instrumentation, error) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	inst := &Instrumentation{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(InstrumentationName, trace.WithInstrumentationVersion(InstrumentationVersion)),
		meter:  cfg.MeterProvider.Meter(InstrumentationName, metric.WithInstrumentationVersion(InstrumentationVersion)),
	}

	if cfg.DisableMetrics {
		return inst, nil
	}

	var err error
	inst.authDuration, err = inst.meter.Float64Histogram(MetricAuthDuration,
		metric.WithDescription("Duration of auth() dispatch calls"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	inst.authCount, err = inst.meter.Int64Counter(MetricAuthCount,
		metric.WithDescription("Total number of auth() calls"))
	if err != nil {
		return nil, err
	}
	inst.authErrorCount, err = inst.meter.Int64Counter(MetricAuthErrorCount,
		metric.WithDescription("Total number of rejected auth() calls"))
	if err != nil {
		return nil, err
	}
	inst.verifyDuration, err = inst.meter.Float64Histogram(MetricVerifyDuration,
		metric.WithDescription("Duration of a single credential verifier call"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// StartAuth starts the dispatcher's top-level "auth" span for one user
// operation. The caller must call the returned end function exactly once,
// passing the rejection error (if any).
func (i *Instrumentation) StartAuth(ctx context.Context, accountID, requestID string) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String(AttrAccountID, accountID),
		attribute.String(AttrRequestID, requestID),
	}

	var span trace.Span
	if !i.cfg.DisableTracing {
		ctx, span = i.tracer.Start(ctx, "authcore.auth", trace.WithAttributes(attrs...))
	}

	return ctx, func(err error) {
		if span != nil {
			defer span.End()
		}
		duration := time.Since(start)

		if !i.cfg.DisableMetrics && i.authCount != nil {
			metricAttrs := metric.WithAttributes(attrs...)
			i.authCount.Add(ctx, 1, metricAttrs)
			i.authDuration.Record(ctx, float64(duration.Milliseconds()), metricAttrs)
			if err != nil {
				i.authErrorCount.Add(ctx, 1, metricAttrs)
			}
		}

		if span != nil && span.IsRecording() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}
	}
}

// TraceVerify wraps a single credential verifier invocation in its own
// child span and records its duration and boolean verdict.
func (i *Instrumentation) TraceVerify(ctx context.Context, identityKind string, verify func(context.Context) bool) bool {
	start := time.Now()
	var span trace.Span
	if !i.cfg.DisableTracing {
		ctx, span = i.tracer.Start(ctx, "authcore.verify",
			trace.WithAttributes(attribute.String(AttrIdentityKind, identityKind)))
		defer span.End()
	}

	ok := verify(ctx)
	duration := time.Since(start)

	if !i.cfg.DisableMetrics && i.verifyDuration != nil {
		i.verifyDuration.Record(ctx, float64(duration.Milliseconds()),
			metric.WithAttributes(attribute.String(AttrIdentityKind, identityKind)))
	}
	if span != nil && span.IsRecording() {
		span.SetAttributes(attribute.Bool(AttrVerifierResult, ok))
		if ok {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, "verification failed")
		}
	}
	return ok
}
