package reshape

import (
	"fmt"
	"math"
	"strings"

	"agmipx/internal/dataset"
)

// FillMethod selects how missing cells are filled along each column
type FillMethod string

const (
	FillNone   FillMethod = "none"
	FillLinear FillMethod = "linear"
	FillSpline FillMethod = "cubicspline"
	FillPad    FillMethod = "pad"
)

// FillMethods lists the supported methods
var FillMethods = []FillMethod{FillNone, FillLinear, FillSpline, FillPad}

// ParseFillMethod reads a method name; the empty string means none
func ParseFillMethod(s string) (FillMethod, error) {
	switch m := FillMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return FillNone, nil
	case FillNone, FillLinear, FillSpline, FillPad:
		return m, nil
	case "spline", "cubic":
		return FillSpline, nil
	case "ffill":
		return FillPad, nil
	}
	return "", &PivotConfigError{Field: "fill", Reason: fmt.Sprintf("unknown fill method %q", s)}
}

// MinPoints returns the number of known values a column needs for the method
func (m FillMethod) MinPoints() int {
	switch m {
	case FillLinear:
		return 2
	case FillSpline:
		return 4
	}
	return 0
}

// Fill returns a copy of t with gaps filled independently in each column. The
// row axis is the interpolation domain: numeric row labels when all of them
// parse, row positions otherwise. Columns without gaps are left as they are.
func Fill(t *Table, method FillMethod) (*Table, error) {
	out := t.Clone()
	if method == FillNone || method == "" {
		return out, nil
	}

	xs, ok := t.numericRows()
	if !ok {
		xs = make([]float64, t.NumRows())
		for i := range xs {
			xs[i] = float64(i)
		}
	}

	for j, col := range t.cols {
		column := t.Column(j)
		var filled []dataset.Value
		var err error
		switch method {
		case FillPad:
			filled = padColumn(column)
		case FillLinear, FillSpline:
			filled, err = interpolateColumn(xs, column, method)
			if err != nil {
				if ide, ok := err.(*InsufficientDataError); ok {
					ide.Column = col
				}
				return nil, err
			}
		default:
			return nil, &PivotConfigError{Field: "fill", Reason: fmt.Sprintf("unknown fill method %q", method)}
		}
		for i, v := range filled {
			out.Set(i, j, v)
		}
	}
	return out, nil
}

func padColumn(column []dataset.Value) []dataset.Value {
	out := make([]dataset.Value, len(column))
	last := dataset.Missing
	for i, v := range column {
		if !v.IsMissing() {
			last = v
		}
		out[i] = last
	}
	return out
}

func interpolateColumn(xs []float64, column []dataset.Value, method FillMethod) ([]dataset.Value, error) {
	var kx, ky []float64
	for i, v := range column {
		if f, ok := v.Get(); ok {
			kx = append(kx, xs[i])
			ky = append(ky, f)
		}
	}
	if len(kx) == len(column) {
		return column, nil
	}
	if need := method.MinPoints(); len(kx) < need {
		return nil, &InsufficientDataError{Method: method, Have: len(kx), Need: need}
	}

	var eval func(float64) float64
	if method == FillSpline {
		eval = newCubicSpline(kx, ky).at
	} else {
		eval = func(x float64) float64 { return linearAt(kx, ky, x) }
	}

	out := make([]dataset.Value, len(column))
	for i, v := range column {
		if v.IsMissing() {
			out[i] = dataset.Some(eval(xs[i]))
			continue
		}
		out[i] = v
	}
	return out, nil
}

// segment returns k such that xs[k] <= x <= xs[k+1], clamped to the end segments
func segment(xs []float64, x float64) int {
	lo, hi := 0, len(xs)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// linearAt evaluates the piecewise linear interpolant, extending the end segments
func linearAt(xs, ys []float64, x float64) float64 {
	k := segment(xs, x)
	slope := (ys[k+1] - ys[k]) / (xs[k+1] - xs[k])
	return ys[k] + slope*(x-xs[k])
}

// cubicSpline is a cubic spline with not-a-knot ends: the third derivative is
// continuous across the second and second-to-last knots, so four knots give the
// single interpolating cubic. m holds the second derivatives at the knots.
type cubicSpline struct {
	xs, ys, m []float64
}

// newCubicSpline needs at least four knots with strictly increasing xs
func newCubicSpline(xs, ys []float64) *cubicSpline {
	n := len(xs)
	h := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
	}

	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
	}
	rhs := make([]float64, n)

	a[0][0], a[0][1], a[0][2] = h[1], -(h[0] + h[1]), h[0]
	for i := 1; i < n-1; i++ {
		a[i][i-1] = h[i-1]
		a[i][i] = 2 * (h[i-1] + h[i])
		a[i][i+1] = h[i]
		rhs[i] = 6 * ((ys[i+1]-ys[i])/h[i] - (ys[i]-ys[i-1])/h[i-1])
	}
	a[n-1][n-3], a[n-1][n-2], a[n-1][n-1] = h[n-2], -(h[n-3] + h[n-2]), h[n-3]

	return &cubicSpline{xs: xs, ys: ys, m: solve(a, rhs)}
}

// solve runs Gaussian elimination with partial pivoting; a and b are overwritten
func solve(a [][]float64, b []float64) []float64 {
	n := len(b)
	for k := 0; k < n; k++ {
		p := k
		for i := k + 1; i < n; i++ {
			if math.Abs(a[i][k]) > math.Abs(a[p][k]) {
				p = i
			}
		}
		a[k], a[p] = a[p], a[k]
		b[k], b[p] = b[p], b[k]
		for i := k + 1; i < n; i++ {
			w := a[i][k] / a[k][k]
			if w == 0 {
				continue
			}
			for j := k; j < n; j++ {
				a[i][j] -= w * a[k][j]
			}
			b[i] -= w * b[k]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x
}

// at evaluates the spline; outside the knots the end polynomials are extended
func (s *cubicSpline) at(x float64) float64 {
	k := segment(s.xs, x)
	h := s.xs[k+1] - s.xs[k]
	a := (s.xs[k+1] - x) / h
	b := (x - s.xs[k]) / h
	return a*s.ys[k] + b*s.ys[k+1] +
		((a*a*a-a)*s.m[k]+(b*b*b-b)*s.m[k+1])*h*h/6
}
