/*
https://github.com/equinix-labs/otel-init-go
Copyright [yyyy] [name of copyright owner]

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package otel installs the global OpenTelemetry tracer provider that the
// DHCP responder opens its per-packet spans on.
package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const shutdownTimeout = 5 * time.Second

// Config describes the DHCP service being traced and where spans are exported.
type Config struct {
	ServiceName string
	// Version is reported as service.version, normally the git revision.
	Version string
	// DHCPAddr and Interface are where the DHCP socket is bound.
	DHCPAddr  string
	Interface string

	// Endpoint is the OTLP gRPC collector address. Tracing is off when empty.
	Endpoint string
	Insecure bool
	Logger   logr.Logger
}

// Init installs a batching OTLP tracer provider when an endpoint is configured.
// The returned func flushes and closes the exporter; it is a no-op when
// tracing is off.
func Init(ctx context.Context, c Config) (context.Context, context.CancelFunc, error) {
	if c.Logger.GetSink() == nil {
		c.Logger = logr.Discard()
	}
	if c.Endpoint == "" {
		c.Logger.V(1).Info("tracing disabled, no OpenTelemetry endpoint set", "service", c.ServiceName)
		return ctx, func() {}, nil
	}

	res, err := c.resource(ctx)
	if err != nil {
		return ctx, nil, err
	}
	exporter, err := otlptracegrpc.New(ctx, c.exporterOptions()...)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to configure OTLP exporter for %v: %w", c.Endpoint, err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)
	otel.SetLogger(c.Logger)
	otel.SetErrorHandler(c)
	c.Logger.Info("tracing enabled", "service", c.ServiceName, "endpoint", c.Endpoint, "insecure", c.Insecure)

	return ctx, func() { c.shutdown(tp, exporter) }, nil
}

// resource describes this process to the collector.
func (c Config) resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(c.ServiceName)}
	if c.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(c.Version))
	}
	if c.DHCPAddr != "" {
		attrs = append(attrs, attribute.String("dhcp.bind_addr", c.DHCPAddr))
	}
	if c.Interface != "" {
		attrs = append(attrs, attribute.String("dhcp.interface", c.Interface))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource for %v: %w", c.ServiceName, err)
	}

	return res, nil
}

func (c Config) exporterOptions() []otlptracegrpc.Option {
	// gRPC retries UNAVAILABLE quickly while the exporter backs off between batches.
	serviceConfig := `{"methodConfig": [{"retryPolicy": {"MaxAttempts": 5, "InitialBackoff": ".01s", "MaxBackoff": ".1s", "BackoffMultiplier": 2.0, "RetryableStatusCodes": ["UNAVAILABLE"]}}]}`
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(c.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithDefaultServiceConfig(serviceConfig)),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  time.Minute,
		}),
	}
	if c.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}

	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

func (c Config) shutdown(tp *sdktrace.TracerProvider, exporter *otlptrace.Exporter) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// the provider flushes pending spans through the exporter before it closes.
	err := errors.Join(tp.Shutdown(ctx), exporter.Shutdown(ctx))
	if err != nil {
		c.Logger.Error(err, "OpenTelemetry shutdown incomplete, spans may have been lost", "endpoint", c.Endpoint)
	}
}

// Handle implements otel.ErrorHandler by logging err.
func (c Config) Handle(err error) {
	if err != nil {
		c.Logger.Info("OpenTelemetry error", "service", c.ServiceName, "err", err)
	}
}
