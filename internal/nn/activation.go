package nn

// LeakySlope is the derivative ReLUDerivative reports for non-positive
// inputs, keeping gradient flowing through inactive units.
const LeakySlope = 0.01

// ReLU is the rectifier: f(x) = max(0, x).
func ReLU(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// ReLUDerivative returns the leaky derivative used during backpropagation:
// 1 for x > 0 and LeakySlope otherwise.
func ReLUDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return LeakySlope
}
