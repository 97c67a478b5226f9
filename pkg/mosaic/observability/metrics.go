package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
)

// MetricsRecorder records mosaic metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRender records one component render (children excluded).
	RecordRender(ctx context.Context, component string, duration time.Duration, err error)

	// RecordLoad records a lazy definition load.
	RecordLoad(ctx context.Context, component string, duration time.Duration, err error)

	// RecordNotify records an applied bus notification.
	RecordNotify(ctx context.Context, topic, event string, delivered int)

	// RecordCapture records a notification buffered by a halted bus.
	RecordCapture(ctx context.Context, topic, event string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	renders       metric.Int64Counter
	renderLatency metric.Float64Histogram
	renderErrors  metric.Int64Counter
	loads         metric.Int64Counter
	loadLatency   metric.Float64Histogram
	loadErrors    metric.Int64Counter
	notifications metric.Int64Counter
	deliveries    metric.Int64Counter
	captures      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("mosaic")
	m := &otelMetrics{}
	var err error

	if m.renders, err = meter.Int64Counter("mosaic.render.count",
		metric.WithDescription("Number of component renders"),
	); err != nil {
		return nil, err
	}
	if m.renderLatency, err = meter.Float64Histogram("mosaic.render.latency_ms",
		metric.WithDescription("Component render latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.renderErrors, err = meter.Int64Counter("mosaic.render.errors",
		metric.WithDescription("Number of failed component renders"),
	); err != nil {
		return nil, err
	}
	if m.loads, err = meter.Int64Counter("mosaic.load.count",
		metric.WithDescription("Number of lazy component loads"),
	); err != nil {
		return nil, err
	}
	if m.loadLatency, err = meter.Float64Histogram("mosaic.load.latency_ms",
		metric.WithDescription("Component load latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.loadErrors, err = meter.Int64Counter("mosaic.load.errors",
		metric.WithDescription("Number of failed component loads"),
	); err != nil {
		return nil, err
	}
	if m.notifications, err = meter.Int64Counter("mosaic.bus.notifications",
		metric.WithDescription("Number of applied bus notifications"),
	); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("mosaic.bus.deliveries",
		metric.WithDescription("Number of handler invocations made by notifications"),
	); err != nil {
		return nil, err
	}
	if m.captures, err = meter.Int64Counter("mosaic.bus.captures",
		metric.WithDescription("Number of notifications buffered while halted"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordRender records a component render.
func (m *otelMetrics) RecordRender(ctx context.Context, component string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("component", component))
	m.renders.Add(ctx, 1, attrs)
	m.renderLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.renderErrors.Add(ctx, 1, attrs)
	}
}

// RecordLoad records a component load.
func (m *otelMetrics) RecordLoad(ctx context.Context, component string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("component", component))
	m.loads.Add(ctx, 1, attrs)
	m.loadLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.loadErrors.Add(ctx, 1, attrs)
	}
}

// RecordNotify records an applied notification.
func (m *otelMetrics) RecordNotify(ctx context.Context, topic, event string, delivered int) {
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("event", event),
	)
	m.notifications.Add(ctx, 1, attrs)
	m.deliveries.Add(ctx, int64(delivered), attrs)
}

// RecordCapture records a buffered notification.
func (m *otelMetrics) RecordCapture(ctx context.Context, topic, event string) {
	m.captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("event", event),
	))
}

// BusObserver adapts a MetricsRecorder to bus.Observer.
func BusObserver(m MetricsRecorder) bus.Observer {
	ctx := context.Background()
	return bus.ObserverFuncs{
		Capture: func(c bus.Call) {
			m.RecordCapture(ctx, c.Topic, c.Event)
		},
		Notify: func(c bus.Call, delivered int) {
			m.RecordNotify(ctx, c.Topic, c.Event, delivered)
		},
	}
}
