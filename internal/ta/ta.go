// Package ta holds indicator math over oldest-first series.
package ta

import "math"

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// Mean averages every value; NaN for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return SMA(vals, len(vals))
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// StdDev is the population standard deviation of the last n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	return math.Sqrt(sumSquares(vals, n) / float64(n))
}

// SampleStdDev is the n-1 standard deviation of the last n values, the same
// estimator rolling windows in the bar feed use.
func SampleStdDev(vals []float64, n int) float64 {
	if len(vals) < n || n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sumSquares(vals, n) / float64(n-1))
}

func sumSquares(vals []float64, n int) float64 {
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return s
}

// LogReturn is ln(to/from); NaN unless both prices are positive.
func LogReturn(from, to float64) float64 {
	if from <= 0 || to <= 0 {
		return math.NaN()
	}
	return math.Log(to / from)
}

// PctChange is the simple percentage move from -> to.
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
