package rocketsim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Extrapolation defines how a tabulated Function behaves outside of its domain.
type Extrapolation uint8

const (
	// ConstantExtrapolation holds the end values.
	ConstantExtrapolation Extrapolation = iota + 1
	// ZeroExtrapolation returns zero outside of the domain.
	ZeroExtrapolation
)

type functionKind uint8

const (
	constantFunction functionKind = iota + 1
	tabulatedFunction
	callbackFunction
)

// Function is a one dimensional curve: a constant, a table with linear
// interpolation, or a Go callback. A Function is never modified once built.
type Function struct {
	kind          functionKind
	value         float64
	xs, ys        []float64
	fn            func(float64) float64
	extrapolation Extrapolation
}

// NewConstantFunction returns a Function which always evaluates to v.
func NewConstantFunction(v float64) *Function {
	return &Function{kind: constantFunction, value: v}
}

// NewCallbackFunction wraps a Go function.
func NewCallbackFunction(fn func(float64) float64) *Function {
	if fn == nil {
		panic("nil callback")
	}
	return &Function{kind: callbackFunction, fn: fn}
}

// NewTabulatedFunction returns a linearly interpolated Function. The abscissa must be strictly increasing.
func NewTabulatedFunction(xs, ys []float64, extrapolation Extrapolation) (*Function, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return nil, fmt.Errorf("tabulated function needs matching non empty columns (got %d and %d)", len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("x[%d]=%g after x[%d]=%g: %w", i, xs[i], i-1, xs[i-1], ErrNonMonotonicProfile)
		}
	}
	if extrapolation == 0 {
		extrapolation = ConstantExtrapolation
	}
	f := &Function{kind: tabulatedFunction, extrapolation: extrapolation}
	f.xs = append([]float64(nil), xs...)
	f.ys = append([]float64(nil), ys...)
	return f, nil
}

// ReadFunctionCSV reads a two column CSV (an optional non numeric header is skipped).
func ReadFunctionCSV(r io.Reader, extrapolation Extrapolation) (*Function, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var xs, ys []float64
	line := 0
	for {
		record, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected two columns, got %d", line, len(record))
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if errX != nil || errY != nil {
			if line == 1 {
				// Header
				continue
			}
			return nil, fmt.Errorf("line %d: invalid number in %q", line, record)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return NewTabulatedFunction(xs, ys, extrapolation)
}

// LoadFunctionCSV reads a two column CSV file.
func LoadFunctionCSV(path string, extrapolation Extrapolation) (*Function, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fn, err := ReadFunctionCSV(f, extrapolation)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fn, nil
}

// At evaluates the function at x.
func (f *Function) At(x float64) float64 {
	switch f.kind {
	case constantFunction:
		return f.value
	case callbackFunction:
		return f.fn(x)
	}
	n := len(f.xs)
	if x <= f.xs[0] || x >= f.xs[n-1] {
		if f.extrapolation == ZeroExtrapolation && (x < f.xs[0] || x > f.xs[n-1]) {
			return 0
		}
		if x <= f.xs[0] {
			return f.ys[0]
		}
		return f.ys[n-1]
	}
	i := sort.SearchFloat64s(f.xs, x)
	if f.xs[i] == x {
		return f.ys[i]
	}
	x0, x1 := f.xs[i-1], f.xs[i]
	y0, y1 := f.ys[i-1], f.ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// IsTabulated returns whether this function is backed by data points.
func (f *Function) IsTabulated() bool {
	return f.kind == tabulatedFunction
}

// IsConstant returns whether this function is a constant.
func (f *Function) IsConstant() bool {
	return f.kind == constantFunction
}

// Domain returns the first and last abscissa of a tabulated function.
func (f *Function) Domain() (lo, hi float64, ok bool) {
	if f.kind != tabulatedFunction {
		return math.Inf(-1), math.Inf(1), false
	}
	return f.xs[0], f.xs[len(f.xs)-1], true
}

// Points returns a copy of the data points of a tabulated function.
func (f *Function) Points() (xs, ys []float64) {
	return append([]float64(nil), f.xs...), append([]float64(nil), f.ys...)
}

// Integral returns the integral of the function between a and b. Tabulated
// functions are integrated exactly (trapezoids), others with Simpson's rule.
func (f *Function) Integral(a, b float64) float64 {
	if a == b {
		return 0
	}
	if a > b {
		return -f.Integral(b, a)
	}
	switch f.kind {
	case constantFunction:
		return f.value * (b - a)
	case tabulatedFunction:
		pts := []float64{a}
		for _, x := range f.xs {
			if x > a && x < b {
				pts = append(pts, x)
			}
		}
		pts = append(pts, b)
		sum := 0.
		for i := 1; i < len(pts); i++ {
			sum += 0.5 * (f.At(pts[i-1]) + f.At(pts[i])) * (pts[i] - pts[i-1])
		}
		return sum
	}
	const n = 1000 // even
	h := (b - a) / n
	sum := f.At(a) + f.At(b)
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			sum += 4 * f.At(a+float64(i)*h)
		} else {
			sum += 2 * f.At(a+float64(i)*h)
		}
	}
	return sum * h / 3
}

// cumulativeIntegral tabulates ∫_a^x f for n+1 evenly spaced x in [a, b].
func (f *Function) cumulativeIntegral(a, b float64, n int) (xs, ys []float64) {
	xs = make([]float64, n+1)
	ys = make([]float64, n+1)
	h := (b - a) / float64(n)
	xs[0] = a
	for i := 1; i <= n; i++ {
		xs[i] = a + float64(i)*h
		ys[i] = ys[i-1] + f.Integral(xs[i-1], xs[i])
	}
	xs[n] = b
	return
}

func (f *Function) String() string {
	switch f.kind {
	case constantFunction:
		return fmt.Sprintf("constant(%g)", f.value)
	case callbackFunction:
		return "callback"
	}
	return fmt.Sprintf("table(%d points on [%g, %g])", len(f.xs), f.xs[0], f.xs[len(f.xs)-1])
}
