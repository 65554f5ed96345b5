//go:build !js_eval

package automerge

// NewJSEvaluator returns nil unless the binary is built with the js_eval tag,
// which keeps goja out of default builds.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
