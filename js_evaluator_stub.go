//go:build !js_eval

package lazyconf

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
// A nil evaluator makes Derive fall back to expr.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

// JSEvaluatorAvailable reports whether goja support was compiled in.
func JSEvaluatorAvailable() bool {
	return false
}
