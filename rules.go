package settings

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEvaluator is returned when no evaluator is configured.
var ErrNoEvaluator = errors.New("settings: evaluator not configured")

// RuleContext carries the inputs of a VisibleWhen or SaveWhen expression.
// Snapshot keys are exposed as top-level variables.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Label    string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) label() string {
	if ctx.Label != "" {
		return ctx.Label
	}
	return "unknown"
}

func (ctx RuleContext) snapshot() map[string]any {
	switch typed := ctx.Snapshot.(type) {
	case Snapshot:
		return map[string]any(typed)
	case map[string]any:
		return typed
	}
	return map[string]any{}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares compiled programs across evaluations.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

func (cfg *config) buildEvaluator() Evaluator {
	if cfg.programCache == nil {
		cfg.programCache = NewMemoryProgramCache()
	}
	exprOpts := []ExprEvaluatorOption{ExprWithProgramCache(cfg.programCache)}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(exprOpts...)
}

func (cfg *config) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return cfg.evaluator, nil
}

// evaluateRule runs expr and coerces the result to a boolean. nil counts as
// false; any other non-boolean result is an error.
func (cfg *config) evaluateRule(ctx RuleContext, expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return false, err
	}
	if ctx.Now == nil && cfg.now != nil {
		now := cfg.now()
		ctx.Now = &now
	}
	ctx = ctx.withDefaults()

	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	evalErr = wrapEvaluationError(engine, expr, ctx.label(), evalErr)
	cfg.evalLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Label:    ctx.label(),
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return false, evalErr
	}

	switch typed := value.(type) {
	case bool:
		return typed, nil
	case nil:
		return false, nil
	default:
		return false, wrapEvaluationError(engine, expr, ctx.label(), fmt.Errorf("rule returned %T, want bool", value))
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if named, ok := e.(interface{ Engine() string }); ok {
			return named.Engine()
		}
		return "custom"
	}
}
