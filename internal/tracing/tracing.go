// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package tracing wires OpenTelemetry for the gateway. When tracing is
// disabled the global no-op provider stays installed and Start is free.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/sigil-dev/claimsgate"

// Config selects the exporter. Output "" or "stdout" writes to stdout,
// anything else is a file path.
type Config struct {
	Enabled        bool
	Output         string
	ServiceVersion string
}

// Init installs a tracer provider with the stdout exporter and returns its
// shutdown function.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	var (
		w       io.Writer = os.Stdout
		closeFn           = func() error { return nil }
	)
	if cfg.Output != "" && cfg.Output != "stdout" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return noop, err
		}
		w, closeFn = f, f.Close
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		_ = closeFn()
		return noop, err
	}
	return install(ctx, cfg.ServiceVersion, exporter, closeFn)
}

// InitWithExporter installs a provider around exporter. Tests use it with an
// in-memory exporter.
func InitWithExporter(ctx context.Context, version string, exporter sdktrace.SpanExporter) (func(context.Context) error, error) {
	return install(ctx, version, exporter, func() error { return nil })
}

func install(ctx context.Context, version string, exporter sdktrace.SpanExporter, closeFn func() error) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "claimsgate"),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		_ = closeFn()
		return func(context.Context) error { return nil }, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

// Start opens a span named name on the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
