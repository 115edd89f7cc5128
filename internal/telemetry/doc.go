// Package telemetry initializes the OpenTelemetry SDK for the assembly
// pipeline: OTLP gRPC exporters for traces and metrics, ratio-based
// sampling, and registration of the global providers the pipeline spans
// resolve against. When telemetry is disabled the globals stay no-op and
// nothing connects to an external service.
package telemetry
