package lazyconf

import (
	"context"
	"log/slog"
	"time"
)

// EvaluationEvent describes one factory or expression run.
type EvaluationEvent struct {
	Key      string
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// EvaluationLogger records evaluation events.
type EvaluationLogger interface {
	LogEvaluation(EvaluationEvent)
}

// LoggerFunc adapts a function to EvaluationLogger.
type LoggerFunc func(EvaluationEvent)

// LogEvaluation implements EvaluationLogger.
func (f LoggerFunc) LogEvaluation(event EvaluationEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluationLogger struct{}

func (noopEvaluationLogger) LogEvaluation(EvaluationEvent) {}

// WithLogger attaches an evaluation logger.
func WithLogger(logger EvaluationLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopEvaluationLogger{}
			return
		}
		cfg.logger = logger
	}
}

type slogLogger struct {
	logger *slog.Logger
}

// SlogLogger writes evaluation events to logger: failures at warn level,
// successful runs at debug level.
func SlogLogger(logger *slog.Logger) EvaluationLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

func (l slogLogger) LogEvaluation(event EvaluationEvent) {
	attrs := []slog.Attr{
		slog.String("key", event.Key),
		slog.String("engine", event.Engine),
		slog.Duration("duration", event.Duration),
	}
	if event.Expr != "" {
		attrs = append(attrs, slog.String("expr", event.Expr))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "lazyconf evaluation failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "lazyconf evaluation", attrs...)
}

type multiLogger []EvaluationLogger

// MultiLogger fans each event out to every non-nil logger.
func MultiLogger(loggers ...EvaluationLogger) EvaluationLogger {
	out := make(multiLogger, 0, len(loggers))
	for _, logger := range loggers {
		if logger != nil {
			out = append(out, logger)
		}
	}
	return out
}

func (m multiLogger) LogEvaluation(event EvaluationEvent) {
	for _, logger := range m {
		logger.LogEvaluation(event)
	}
}
