// Package mathutil holds log-domain arithmetic shared by the models and
// the scorers.
package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// Below this difference exp(d) is lost in float64 precision (exp(-36) ≈ 2.3e-16).
const negligibleLogDiff = -36.0

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := b - a
	if d < negligibleLogDiff {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(sum(exp(x))) over xs, LogZero for an empty slice.
func LogSumExp(xs []float64) float64 {
	sum := LogZero
	for _, x := range xs {
		sum = LogAdd(sum, x)
	}
	return sum
}

// LogMix returns log((1-r)*exp(a) + r*exp(b)) for r in [0,1].
func LogMix(r, a, b float64) float64 {
	switch {
	case r <= 0:
		return a
	case r >= 1:
		return b
	}
	return LogAdd(math.Log1p(-r)+a, math.Log(r)+b)
}
