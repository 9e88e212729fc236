// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry 提供可選的 OTLP tracing。
//
// 預設不啟用：Endpoint 為空或 Enabled=false 時 Setup 回傳 no-op shutdown，
// 不註冊全域 provider，otel.Tracer 仍可安全使用（no-op span）。
package telemetry

import (
	"context"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/propfuzz/errs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName 所有 span 的 instrumentation scope
const ScopeName = "github.com/zintix-labs/propfuzz"

// Config tracing 設定
type Config struct {
	Endpoint string `env:"PROPFUZZ_OTEL_ENDPOINT"`
	Enabled  string `env:"PROPFUZZ_OTEL_ENABLED"`
}

// LoadConfig 由環境變數讀取
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "parse otel env")
	}
	return cfg, nil
}

// Active 是否需要建立 exporter
func (c Config) Active() bool {
	if strings.EqualFold(strings.TrimSpace(c.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(c.Endpoint) != ""
}

// Setup 依設定初始化 tracing，回傳的 shutdown 會 flush 尚未送出的 span。
func Setup(ctx context.Context, serviceName string, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return noop, errs.Wrap(err, "create otlp exporter")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, errs.Wrap(err, "create otel resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer 取得目前全域 provider 的 tracer
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
