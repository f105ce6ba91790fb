package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the agent and the transports.
const (
	AttrRunID     = attribute.Key("toolwire.run_id")
	AttrSessionID = attribute.Key("toolwire.session_id")
)

// ProviderConfig describes the tracer provider installed by Setup.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	// Exporter receives finished spans. Without one spans are sampled
	// for IDs and attributes but never leave the process.
	Exporter sdktrace.SpanExporter
}

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// Setup installs the process-wide tracer provider. Only the first call
// takes effect.
func Setup(cfg ProviderConfig) error {
	providerOnce.Do(func() {
		tp, err := NewProvider(cfg)
		if err != nil {
			providerErr = err
			return
		}

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return providerErr
}

// NewProvider builds a tracer provider whose resource names the service
// and its version.
func NewProvider(cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithSyncer(cfg.Exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// Shutdown flushes and shuts down the provider installed by Setup.
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span tagged with the run and session IDs carried
// by ctx. The span's trace ID is copied into ctx when none is set so
// log lines and spans correlate.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if runID := GetRunID(ctx); runID != "" {
		attrs = append(attrs, AttrRunID.String(runID))
	}
	if sessionID := GetSessionID(ctx); sessionID != "" {
		attrs = append(attrs, AttrSessionID.String(sessionID))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}

// BindSession records the transport session on ctx and on the span
// already active in it.
func BindSession(ctx context.Context, sessionID string) context.Context {
	trace.SpanFromContext(ctx).SetAttributes(AttrSessionID.String(sessionID))
	return WithSessionID(ctx, sessionID)
}
