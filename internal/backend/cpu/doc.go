// Package cpu provides the pure Go numeric kernels behind the layer engine.
//
// # Overview
//
// The kernels operate on single tensor.Grid values and are written as plain
// nested loops:
//   - Correlate: strided valid cross-correlation (convolution forward pass)
//   - FullCorrelate: full cross-correlation with implicit zero padding
//     (routes gradients back through a convolution)
//   - Dilate: stride-expansion of a gradient grid
//   - MaxPool2D / MaxPool2DBackward: window maximum with argmax bookkeeping
//     and the matching sparse gradient scatter
//
// Kernels allocate their result and never modify their inputs. Invalid
// geometry is a programming error and panics.
package cpu
