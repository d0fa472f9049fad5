package settings

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError reports a failed rule along with the engine, expression
// and rule label that produced it.
type EvaluationError struct {
	Engine string
	Expr   string
	Label  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "expr=<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("expr=%q", e.Expr)
	}
	return fmt.Sprintf("settings: %s rule %s label=%s: %v", e.Engine, expr, e.Label, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s evaluator: %w", engine, err)
}

// wrapEvaluationError fills missing metadata on an existing EvaluationError
// rather than nesting a second one.
func wrapEvaluationError(engine, expr, label string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Label == "" {
			evalErr.Label = label
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Expr: expr, Label: label, Err: err}
}
