// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"

	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=zipkin otlp otlphttp"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint" validate:"required_if=EnableTracing true"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

func (config *TracingConfig) newExporter(ctx context.Context) (tracesdk.SpanExporter, error) {
	switch config.Exporter {
	case "zipkin":
		return zipkin.New(config.CollectorEndpoint)
	case "otlp":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		return otlptrace.New(ctx, client)
	case "otlphttp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		return otlptrace.New(ctx, client)
	}
	return nil, errors.NotSupportedf("exporter %s", config.Exporter)
}

func (config *TracingConfig) newSampler() tracesdk.Sampler {
	switch config.Sampler {
	case "never":
		return tracesdk.NeverSample()
	case "ratio":
		return tracesdk.TraceIDRatioBased(config.Ratio)
	}
	return tracesdk.AlwaysSample()
}

// NewTracerProvider creates a tracer provider exporting spans to the
// collector, or a no-op provider if tracing is disabled. The shutdown function
// flushes pending spans.
func (config *TracingConfig) NewTracerProvider(ctx context.Context) (trace.TracerProvider, func(context.Context) error, error) {
	if !config.EnableTracing {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	exporter, err := config.newExporter(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(config.newSampler()),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "deepctr"),
		)),
	)
	return tp, tp.Shutdown, nil
}
