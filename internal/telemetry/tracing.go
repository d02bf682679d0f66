/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName identifies this process in traces.
const ServiceName = "worktime"

// Span attributes recorded for end-instant computations.
const (
	AttrStart       = attribute.Key("worktime.start")
	AttrEnd         = attribute.Key("worktime.end")
	AttrEstimate    = attribute.Key("worktime.estimate_days")
	AttrWindow      = attribute.Key("worktime.window")
	AttrIterations  = attribute.Key("worktime.iterations")
	AttrDaysSkipped = attribute.Key("worktime.days_skipped")
	AttrTaskID      = attribute.Key("worktime.task_id")
)

const computeTracer = "worktime/engine"

// TracerConfig contains configuration for OpenTelemetry tracing.
type TracerConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Commit         string
	Environment    string
	InstanceID     string
	OTLPEndpoint   string  // host:port of an OTLP gRPC collector
	SampleRate     float64 // 0.0 to 1.0
}

// TracerProvider owns the SDK provider so it can be flushed on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   zerolog.Logger
}

// InitTracer installs the global tracer provider. When tracing is disabled
// a no-op provider is installed and spans cost nothing.
func InitTracer(ctx context.Context, cfg TracerConfig, logger zerolog.Logger) (*TracerProvider, error) {
	logger = logger.With().Str("component", "tracing").Logger()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.Debug().Msg("tracing disabled")
		return &TracerProvider{logger: logger}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		otlptracegrpc.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter for %s: %w", cfg.OTLPEndpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("otlp_endpoint", cfg.OTLPEndpoint).
		Float64("sample_rate", cfg.SampleRate).
		Str("environment", cfg.Environment).
		Msg("tracing enabled")
	return &TracerProvider{provider: tp, logger: logger}, nil
}

func resourceAttributes(cfg TracerConfig) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = ServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(cfg.InstanceID))
	}
	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("vcs.commit", cfg.Commit))
	}
	return attrs
}

// samplerFor maps a 0..1 rate to a parent-based sampler so that spans
// started inside a sampled request stay sampled.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0.0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tp.logger.Debug().Msg("tracer provider flushed")
	return nil
}

// StartComputeSpan opens the span around one engine call. taskID is empty
// for stateless computations.
func StartComputeSpan(ctx context.Context, taskID string, start time.Time, estimateDays float64, window string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrStart.String(start.Format(time.RFC3339)),
		AttrEstimate.Float64(estimateDays),
		AttrWindow.String(window),
	}
	if taskID != "" {
		attrs = append(attrs, AttrTaskID.String(taskID))
	}
	return otel.Tracer(computeTracer).Start(ctx, "worktime.compute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// FinishComputeSpan records the engine outcome and ends the span.
func FinishComputeSpan(span trace.Span, end time.Time, iterations, daysSkipped int, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		AttrEnd.String(end.Format(time.RFC3339)),
		AttrIterations.Int(iterations),
		AttrDaysSkipped.Int(daysSkipped),
	)
}
