//go:build js_eval

package settings

import "testing"

func TestJSEvaluator(t *testing.T) {
	if !JSEvaluatorAvailable() {
		t.Fatalf("expected js engine compiled in")
	}
	cache := NewMemoryProgramCache()
	cfg := applyOptions([]Option{WithEvaluator(NewJSEvaluator(JSWithProgramCache(cache)))})
	ctx := RuleContext{Snapshot: Snapshot{"plan": "pro", "seats": 5}}

	ok, err := cfg.evaluateRule(ctx, `plan === "pro" && seats > 3`)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
	if name := evaluatorEngineName(cfg.evaluator); name != "js" {
		t.Fatalf("expected js engine name, got %q", name)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected cached program, got %d", cache.Len())
	}
}
