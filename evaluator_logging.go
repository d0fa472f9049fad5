package settings

import "time"

// EvaluatorLogEvent describes one rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Label    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// WithEvaluatorLogger receives every rule evaluation. Without it evaluations
// are logged at debug level through the configured Logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		cfg.evaluatorLogger = logger
	}
}

func (cfg *config) evalLogger() EvaluatorLogger {
	if cfg.evaluatorLogger != nil {
		return cfg.evaluatorLogger
	}
	logger := cfg.log()
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err != nil {
			logger.Warn("settings: rule evaluation failed",
				"engine", event.Engine, "expr", event.Expr, "label", event.Label, "error", event.Err)
			return
		}
		logger.Debug("settings: rule evaluated",
			"engine", event.Engine, "expr", event.Expr, "label", event.Label, "duration", event.Duration)
	})
}
