// Package telemetry instruments the operation dispatcher (C8) and the
// credential verifiers (C2-C5) with OpenTelemetry traces and metrics,
// adapted from v2/telemetry's HTTP-transport instrumentation to wrap an
// in-process call instead of a RoundTripper: the dispatcher has no outbound
// HTTP leg of its own, but the same tracer/meter/attribute wiring applies to
// the auth() pipeline.
package telemetry
