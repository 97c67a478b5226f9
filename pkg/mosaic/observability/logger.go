// Package observability provides logging, metrics and tracing for mosaic.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// LogOptions selects the handler built by NewLogger.
type LogOptions struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string
	// Format is "text" or "json". Default: text.
	Format string
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnrichLogger adds instance context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "menu", inst.ID())
//	enriched.Info("mounted") // includes component and instance_id
func EnrichLogger(logger *slog.Logger, component, instanceID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("component", component),
		slog.String("instance_id", instanceID),
	)
}

// LogRenderStart logs the start of a component render.
func LogRenderStart(logger *slog.Logger, component string) {
	if logger == nil {
		return
	}
	logger.Debug("render starting",
		slog.String("component", component),
	)
}

// LogRenderComplete logs a successful render, children included.
func LogRenderComplete(logger *slog.Logger, component string, durationMs float64, children int) {
	if logger == nil {
		return
	}
	logger.Debug("render completed",
		slog.String("component", component),
		slog.Float64("duration_ms", durationMs),
		slog.Int("children", children),
	)
}

// LogRenderError logs a failed render branch.
func LogRenderError(logger *slog.Logger, component string, err error) {
	if logger == nil {
		return
	}
	logger.Error("render failed",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}

// LogUnknownComponent logs a render request for a name with no definition.
func LogUnknownComponent(logger *slog.Logger, component string) {
	if logger == nil {
		return
	}
	logger.Warn("component is not defined",
		slog.String("component", component),
	)
}

// LogLoadStart logs the start of a lazy definition load.
func LogLoadStart(logger *slog.Logger, component string) {
	if logger == nil {
		return
	}
	logger.Debug("loading component",
		slog.String("component", component),
	)
}

// LogLoadError logs a failed lazy definition load (non-fatal).
func LogLoadError(logger *slog.Logger, component string, err error) {
	if logger == nil {
		return
	}
	logger.Error("component load failed",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}

// LogSuperseded logs a load result discarded because its container was
// rendered again or removed while the load was in flight.
func LogSuperseded(logger *slog.Logger, component string) {
	if logger == nil {
		return
	}
	logger.Debug("discarding superseded render",
		slog.String("component", component),
	)
}

// LogSubscribeError logs a rejected listener map.
func LogSubscribeError(logger *slog.Logger, component string, err error) {
	if logger == nil {
		return
	}
	logger.Error("listener subscription failed",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}

// LogHandlerPanic logs a recovered bus handler panic.
func LogHandlerPanic(logger *slog.Logger, topic, event string, value any, stack string) {
	if logger == nil {
		return
	}
	logger.Error("bus handler panicked",
		slog.String("topic", topic),
		slog.String("event", event),
		slog.Any("panic", value),
		slog.String("stack", stack),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
