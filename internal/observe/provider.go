package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures telemetry for an intake process. The zero value
// is usable: metrics land on /metrics and spans stay in-process.
type ProviderConfig struct {
	// ServiceName identifies this process in telemetry. Default: "lexivoice".
	ServiceName string

	// ServiceVersion is stamped onto the resource, typically the build
	// version from -ldflags.
	ServiceVersion string

	// TraceExporter, when set, receives every pipeline span (routing
	// decisions, retrieval legs, response generation). Left nil, spans are
	// still recorded so trace IDs keep working as correlation IDs, but
	// nothing ships them anywhere.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider wires the global OpenTelemetry providers: a meter provider
// backed by the Prometheus exporter, and a tracer provider with the
// configured exporter. The returned function shuts both down; defer it from
// main so a final flush happens before exit.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var closers []func(context.Context) error

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, closeFn := range closers {
			errs = append(errs, closeFn(ctx))
		}
		return errors.Join(errs...)
	}
	return shutdown, nil
}

// newResource describes this process to telemetry backends, layering the
// service identity over the SDK's environment-derived defaults.
func newResource(cfg ProviderConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "lexivoice"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}
