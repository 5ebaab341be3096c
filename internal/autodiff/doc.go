// Package autodiff provides reverse-mode automatic differentiation over
// dense tensors.
//
// The engine is graph-based: each [Value] holds a tensor plus a backward
// closure that maps the output cotangent to cotangents for its inputs.
// Gradients are computed by a topological reverse sweep:
//
//	x := autodiff.Constant(t)
//	y := autodiff.Tanh(autodiff.MatVec(w, x))
//	err := autodiff.Backward(y, cotangent)
//	g := x.Grad()
//
// Three pieces define the boundary with numerical code that cannot be traced
// through:
//
//   - [VJP]: vector-Jacobian products for selected inputs, zero-filled when
//     an input does not influence the outputs
//   - [Custom]: registers a user backward rule for outputs computed outside
//     the graph, so the sweep calls the rule instead of differentiating
//     internals
//   - [Variable] and [Tape]: trainable tensors and their per-graph leaf
//     bindings; gradients reported by custom rules accumulate directly into
//     Variable.Grad
//
// # Thread Safety
//
// Values and graphs are not safe for concurrent use. Build and differentiate
// a graph from a single goroutine.
package autodiff
