package settings

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestExprEvaluatorReadsSnapshotAndArgs(t *testing.T) {
	cache := NewMemoryProgramCache()
	evaluator := NewExprEvaluator(ExprWithProgramCache(cache))
	ctx := RuleContext{
		Snapshot: Snapshot{"plan": "pro", "limits": map[string]any{"seats": 5}},
		Args:     map[string]any{"min": 3},
	}

	for i := 0; i < 2; i++ {
		got, err := evaluator.Evaluate(ctx, `plan == "pro" && limits.seats > args.min`)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != true {
			t.Fatalf("expected true, got %#v", got)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %d", cache.Len())
	}

	if _, err := evaluator.Evaluate(ctx, ""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestCompiledRulesEvaluatePerContext(t *testing.T) {
	for _, evaluator := range []Evaluator{NewExprEvaluator(), NewCELEvaluator()} {
		engine := evaluatorEngineName(evaluator)
		rule, err := evaluator.Compile(`plan == "pro"`)
		if err != nil {
			t.Fatalf("%s: compile: %v", engine, err)
		}
		for plan, want := range map[string]bool{"pro": true, "free": false} {
			got, err := rule.Evaluate(RuleContext{Snapshot: Snapshot{"plan": plan}})
			if err != nil {
				t.Fatalf("%s: evaluate %q: %v", engine, plan, err)
			}
			if got != want {
				t.Fatalf("%s: plan %q: expected %v, got %#v", engine, plan, want, got)
			}
		}
		if _, err := evaluator.Compile(""); err == nil {
			t.Fatalf("%s: expected error compiling an empty expression", engine)
		}
	}
}

func TestExprEvaluatorCustomFunctions(t *testing.T) {
	cfg := applyOptions([]Option{
		WithCustomFunction("Double", func(args ...any) (any, error) {
			n, ok := args[0].(int)
			if !ok {
				return nil, fmt.Errorf("double: want int, got %T", args[0])
			}
			return n * 2, nil
		}),
	})

	for _, expression := range []string{`double(seats) == 4`, `call("double", seats) == 4`} {
		ok, err := cfg.evaluateRule(RuleContext{Snapshot: map[string]any{"seats": 2}}, expression)
		if err != nil || !ok {
			t.Fatalf("%s: expected true, got %v %v", expression, ok, err)
		}
	}
}

func TestEvaluateRuleCoercesResults(t *testing.T) {
	var events []EvaluatorLogEvent
	cfg := applyOptions([]Option{
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	})

	if ok, err := cfg.evaluateRule(RuleContext{}, ""); err != nil || !ok {
		t.Fatalf("expected empty rule to pass, got %v %v", ok, err)
	}
	if ok, err := cfg.evaluateRule(RuleContext{}, "nil"); err != nil || ok {
		t.Fatalf("expected nil result to be false, got %v %v", ok, err)
	}

	_, err := cfg.evaluateRule(RuleContext{Label: "general#title"}, `"text"`)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Label != "general#title" {
		t.Fatalf("expected EvaluationError for non-bool result, got %v", err)
	}

	if len(events) != 2 || events[0].Engine != "expr" || events[1].Label != "general#title" {
		t.Fatalf("unexpected evaluator events %#v", events)
	}
}

func TestEvaluateRuleUsesClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := applyOptions([]Option{
		WithClock(func() time.Time { return fixed }),
		WithEvaluator(NewCELEvaluator()),
	})
	ok, err := cfg.evaluateRule(RuleContext{}, `now == timestamp("2026-01-02T03:04:05Z")`)
	if err != nil || !ok {
		t.Fatalf("expected clock to feed now, got %v %v", ok, err)
	}
}

func TestCELEvaluator(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("upper", func(args ...any) (any, error) {
		return strings.ToUpper(fmt.Sprint(args[0])), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	cfg := applyOptions([]Option{WithEvaluator(NewCELEvaluator(CELWithFunctionRegistry(registry)))})
	ctx := RuleContext{
		Snapshot: Snapshot{"plan": "pro", "seats": 5},
		Metadata: map[string]any{"actor_id": "u1"},
	}

	cases := []struct {
		expr string
		want bool
	}{
		{expr: `plan == "pro" && seats > 3`, want: true},
		{expr: `metadata.actor_id == "u2"`, want: false},
		{expr: `call("upper", [plan]) == "PRO"`, want: true},
	}
	for _, tc := range cases {
		got, err := cfg.evaluateRule(ctx, tc.expr)
		if err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.expr, tc.want, got)
		}
	}

	if _, err := cfg.evaluateRule(ctx, `undeclared > 1`); err == nil {
		t.Fatalf("expected error for undeclared variable")
	}
	if name := evaluatorEngineName(cfg.evaluator); name != "cel" {
		t.Fatalf("expected cel engine name, got %q", name)
	}
}

func TestFunctionRegistryRejectsDuplicates(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(args ...any) (any, error) { return nil, nil }
	if err := registry.Register("Twice", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("twice", fn); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected error calling unknown function")
	}
	if names := registry.Names(); len(names) != 1 || names[0] != "twice" {
		t.Fatalf("unexpected names %v", names)
	}
}
