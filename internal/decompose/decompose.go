// Package decompose splits an evenly spaced series into trend, seasonal and
// residual components using classical moving-average decomposition.
package decompose

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Model selects how the components combine into the observed series.
type Model int

const (
	// Additive: observed = trend + seasonal + resid.
	Additive Model = iota
	// Multiplicative: observed = trend * seasonal * resid.
	Multiplicative
)

func (m Model) String() string {
	if m == Multiplicative {
		return "multiplicative"
	}
	return "additive"
}

// ParseModel accepts "additive" or "multiplicative", case-insensitively.
// The empty string selects Additive.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "additive":
		return Additive, nil
	case "multiplicative":
		return Multiplicative, nil
	}
	return Additive, fmt.Errorf("unknown decomposition model %q", s)
}

var (
	// ErrInsufficientData is returned when the series holds fewer than two
	// complete periods.
	ErrInsufficientData = errors.New("decompose: series shorter than two full periods")
	// ErrNonPositive is returned by the multiplicative model for series
	// containing zero or negative values.
	ErrNonPositive = errors.New("decompose: multiplicative model requires strictly positive values")
)

// Result holds the components of a decomposition. Every slice has the
// length of Observed. Trend and Resid are NaN for the first and last
// period/2 points where the centred moving average is undefined.
type Result struct {
	Model    Model
	Period   int
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Resid    []float64
}

// Decompose runs a classical decomposition of x with the given period.
// The trend is a centred moving average of width period (a 2xperiod
// average when period is even); the seasonal component is the per-phase
// mean of the detrended series, centred to zero (additive) or one
// (multiplicative).
func Decompose(x []float64, period int, model Model) (*Result, error) {
	if period < 2 {
		return nil, fmt.Errorf("decompose: period must be at least 2, got %d", period)
	}
	if len(x) < 2*period {
		return nil, fmt.Errorf("%w: need %d observations, have %d", ErrInsufficientData, 2*period, len(x))
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("decompose: series contains NaN or Inf")
		}
		if model == Multiplicative && v <= 0 {
			return nil, ErrNonPositive
		}
	}

	observed := make([]float64, len(x))
	copy(observed, x)

	trend := movingAverage(observed, period)

	detrended := make([]float64, len(x))
	for i := range observed {
		if model == Multiplicative {
			detrended[i] = observed[i] / trend[i]
		} else {
			detrended[i] = observed[i] - trend[i]
		}
	}

	phase := phaseMeans(detrended, period)
	centre := floats.Sum(phase) / float64(period)
	for i := range phase {
		if model == Multiplicative {
			phase[i] /= centre
		} else {
			phase[i] -= centre
		}
	}

	seasonal := make([]float64, len(x))
	resid := make([]float64, len(x))
	for i := range observed {
		seasonal[i] = phase[i%period]
		if model == Multiplicative {
			resid[i] = detrended[i] / seasonal[i]
		} else {
			resid[i] = detrended[i] - seasonal[i]
		}
	}

	return &Result{
		Model:    model,
		Period:   period,
		Observed: observed,
		Trend:    trend,
		Seasonal: seasonal,
		Resid:    resid,
	}, nil
}

// filter returns the centred moving-average weights for period.
func filter(period int) []float64 {
	if period%2 == 1 {
		w := make([]float64, period)
		for i := range w {
			w[i] = 1 / float64(period)
		}
		return w
	}
	w := make([]float64, period+1)
	for i := range w {
		w[i] = 1 / float64(period)
	}
	w[0] /= 2
	w[period] /= 2
	return w
}

// movingAverage applies the two-sided filter, leaving NaN where the window
// does not fit.
func movingAverage(x []float64, period int) []float64 {
	w := filter(period)
	half := len(w) / 2
	out := make([]float64, len(x))
	for i := range out {
		lo := i - half
		hi := lo + len(w)
		if lo < 0 || hi > len(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Dot(w, x[lo:hi])
	}
	return out
}

// phaseMeans averages x at each phase of the cycle, ignoring NaN.
func phaseMeans(x []float64, period int) []float64 {
	out := make([]float64, period)
	for p := 0; p < period; p++ {
		var sum float64
		var n int
		for i := p; i < len(x); i += period {
			if math.IsNaN(x[i]) {
				continue
			}
			sum += x[i]
			n++
		}
		if n == 0 {
			out[p] = math.NaN()
			continue
		}
		out[p] = sum / float64(n)
	}
	return out
}
