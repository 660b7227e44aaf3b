package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Custom attributes use the "trustcore." namespace to distinguish them from
// standard OpenTelemetry semantic conventions.
const (
	attrAction  = "trustcore.action"
	attrStage   = "trustcore.stage"
	attrOutcome = "trustcore.outcome"
	attrLevel   = "trustcore.risk_level"
	attrShard   = "trustcore.shard"
)

var (
	pipelineDecisions metric.Int64Counter
	riskAssessments   metric.Int64Counter
	shardCalls        metric.Int64Counter
	shardCallDuration metric.Float64Histogram
	metricsHandler    http.Handler
	initialized       int32
	initOnce          sync.Once
)

// Config holds the configuration for OpenTelemetry metrics
type Config struct {
	// ExporterType can be "prometheus", "otlp", or "none" (disabled)
	ExporterType string
	// ServiceName is reported as the otel service name
	ServiceName string
	// ServiceVersion defaults to "dev"
	ServiceVersion string
	// OTLPEndpoint is the OTLP endpoint URL when ExporterType is "otlp"
	OTLPEndpoint string
	// OTLPHeaders are additional headers for the OTLP exporter (API keys)
	OTLPHeaders map[string]string
}

// DefaultConfig returns a default configuration from the environment
func DefaultConfig(serviceName string) Config {
	exporter := os.Getenv("OTEL_METRICS_EXPORTER")
	if exporter == "" {
		exporter = "prometheus"
	}
	version := os.Getenv("SERVICE_VERSION")
	if version == "" {
		version = "dev"
	}
	return Config{
		ExporterType:   exporter,
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// Initialize sets up OpenTelemetry metrics. Safe to call more than once;
// only the first call initializes.
func Initialize(config Config) error {
	var initErr error
	initOnce.Do(func() {
		initErr = initializeInternal(context.Background(), config)
		if initErr == nil {
			atomic.StoreInt32(&initialized, 1)
		}
	})
	return initErr
}

func initializeInternal(ctx context.Context, config Config) error {
	if config.ExporterType == "none" {
		slog.Info("Metrics disabled by configuration")
		return fmt.Errorf("metrics disabled")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var reader sdkmetric.Reader
	switch config.ExporterType {
	case "otlp":
		opts := []otlpmetrichttp.Option{}
		if config.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(config.OTLPEndpoint))
		}
		if len(config.OTLPHeaders) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(config.OTLPHeaders))
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
		slog.Info("Initialized OpenTelemetry metrics with OTLP exporter", "endpoint", config.OTLPEndpoint)
	default:
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		slog.Info("Initialized OpenTelemetry metrics with Prometheus exporter")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)

	meter := otel.Meter("github.com/Hung6066/IVF-sub008")

	if pipelineDecisions, err = meter.Int64Counter("trustcore.pipeline.decisions",
		metric.WithDescription("Authorization pipeline decisions by action, stage and outcome")); err != nil {
		return err
	}
	if riskAssessments, err = meter.Int64Counter("trustcore.risk.assessments",
		metric.WithDescription("Risk assessments by resulting level")); err != nil {
		return err
	}
	if shardCalls, err = meter.Int64Counter("trustcore.biometric.shard_calls",
		metric.WithDescription("Biometric matcher shard calls by shard and outcome")); err != nil {
		return err
	}
	if shardCallDuration, err = meter.Float64Histogram("trustcore.biometric.shard_call_duration",
		metric.WithDescription("Biometric matcher shard call duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return err
	}

	return nil
}

// IsInitialized reports whether metrics were initialized
func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

// MetricsHandler returns the Prometheus scrape handler, or nil when the
// Prometheus exporter is not active
func MetricsHandler() http.Handler {
	return metricsHandler
}

// RecordPipelineDecision counts a pipeline stage outcome
func RecordPipelineDecision(ctx context.Context, action, stage, outcome string) {
	if !IsInitialized() {
		return
	}
	pipelineDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAction, action),
		attribute.String(attrStage, stage),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordRiskAssessment counts an assessment by resulting level
func RecordRiskAssessment(ctx context.Context, level string) {
	if !IsInitialized() {
		return
	}
	riskAssessments.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrLevel, level),
	))
}

// RecordShardCall counts one matcher shard call and its duration
func RecordShardCall(ctx context.Context, shard, outcome string, duration time.Duration) {
	if !IsInitialized() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrShard, shard),
		attribute.String(attrOutcome, outcome),
	)
	shardCalls.Add(ctx, 1, attrs)
	shardCallDuration.Record(ctx, duration.Seconds(), attrs)
}
