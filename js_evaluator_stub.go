//go:build !js_eval

package settings

// NewJSEvaluator returns nil unless built with the js_eval tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

// JSEvaluatorAvailable reports whether the goja engine was compiled in.
func JSEvaluatorAvailable() bool {
	return false
}
