// Package observe provides logging, tracing and metrics for regridding.
//
// Logging goes through the Logger interface, backed by zerolog. Tracing and
// metrics use OpenTelemetry; NewObserver wires the providers and exporters
// from a Config, and Middleware instruments regrid calls with a span, a
// duration histogram and a completion log line. CacheMetrics reports matrix
// memory cache activity.
package observe
