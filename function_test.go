package rocketsim

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestFunctionConstant(t *testing.T) {
	f := NewConstantFunction(0.5)
	for _, x := range []float64{-10, 0, 3, 1e6} {
		if f.At(x) != 0.5 {
			t.Fatalf("At(%f)=%f", x, f.At(x))
		}
	}
	if !f.IsConstant() || f.IsTabulated() {
		t.Fatal("wrong kind")
	}
	if !scalar.EqualWithinAbs(f.Integral(1, 3), 1, 1e-12) {
		t.Fatalf("integral %f", f.Integral(1, 3))
	}
	if _, _, ok := f.Domain(); ok {
		t.Fatal("a constant has no domain")
	}
}

func TestFunctionTabulated(t *testing.T) {
	f, err := NewTabulatedFunction([]float64{0, 1, 3}, []float64{0, 10, 30}, ConstantExtrapolation)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ x, y float64 }{{-1, 0}, {0, 0}, {0.5, 5}, {1, 10}, {2, 20}, {3, 30}, {5, 30}} {
		if !scalar.EqualWithinAbs(f.At(tc.x), tc.y, 1e-12) {
			t.Fatalf("At(%f)=%f expected %f", tc.x, f.At(tc.x), tc.y)
		}
	}
	if !scalar.EqualWithinAbs(f.Integral(0, 3), 45, 1e-12) {
		t.Fatalf("integral %f", f.Integral(0, 3))
	}
	if !scalar.EqualWithinAbs(f.Integral(3, 0), -45, 1e-12) {
		t.Fatalf("reverse integral %f", f.Integral(3, 0))
	}
	lo, hi, ok := f.Domain()
	if !ok || lo != 0 || hi != 3 {
		t.Fatalf("domain [%f, %f] %v", lo, hi, ok)
	}

	z, err := NewTabulatedFunction([]float64{1, 2}, []float64{5, 5}, ZeroExtrapolation)
	if err != nil {
		t.Fatal(err)
	}
	if z.At(0.5) != 0 || z.At(2.5) != 0 || z.At(1) != 5 || z.At(2) != 5 {
		t.Fatal("zero extrapolation failed")
	}
	if !scalar.EqualWithinAbs(z.Integral(1, 2), 5, 1e-12) {
		t.Fatalf("integral with zero extrapolation %f", z.Integral(0, 3))
	}
}

func TestFunctionInvalid(t *testing.T) {
	if _, err := NewTabulatedFunction([]float64{0, 1, 1}, []float64{0, 1, 2}, ConstantExtrapolation); !errors.Is(err, ErrNonMonotonicProfile) {
		t.Fatalf("expected ErrNonMonotonicProfile, got %v", err)
	}
	if _, err := NewTabulatedFunction(nil, nil, ConstantExtrapolation); err == nil {
		t.Fatal("expected an error for an empty table")
	}
	if _, err := NewTabulatedFunction([]float64{0, 1}, []float64{0}, ConstantExtrapolation); err == nil {
		t.Fatal("expected an error for mismatched columns")
	}
}

func TestFunctionCallback(t *testing.T) {
	f := NewCallbackFunction(func(x float64) float64 { return x * x })
	if f.At(3) != 9 {
		t.Fatal("callback not evaluated")
	}
	if !scalar.EqualWithinAbs(f.Integral(0, 3), 9, 1e-9) {
		t.Fatalf("Simpson integral %f", f.Integral(0, 3))
	}
	xs, ys := f.cumulativeIntegral(0, 3, 3)
	if !vectorsEqual(xs, []float64{0, 1, 2, 3}) {
		t.Fatalf("xs = %v", xs)
	}
	if !scalar.EqualWithinAbs(ys[3], 9, 1e-9) || !scalar.EqualWithinAbs(ys[1], 1./3, 1e-9) {
		t.Fatalf("ys = %v", ys)
	}
}

func TestReadFunctionCSV(t *testing.T) {
	const data = `# drag curve
mach,cd
0.0, 0.5
0.5, 0.45
1.0, 0.6
`
	f, err := ReadFunctionCSV(strings.NewReader(data), ConstantExtrapolation)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(f.At(0.75), 0.525, 1e-12) {
		t.Fatalf("At(0.75)=%f", f.At(0.75))
	}
	if f.At(2) != 0.6 {
		t.Fatalf("At(2)=%f", f.At(2))
	}
	if _, err := ReadFunctionCSV(strings.NewReader("0,1\nfoo,bar\n"), ConstantExtrapolation); err == nil {
		t.Fatal("expected an error for a non numeric line")
	}
	if _, err := ReadFunctionCSV(strings.NewReader("0\n"), ConstantExtrapolation); err == nil {
		t.Fatal("expected an error for a single column")
	}
}

func TestLoadFunctionCSV(t *testing.T) {
	f, err := LoadFunctionCSV("data/calisto/powerOffDragCurve.csv", ConstantExtrapolation)
	if err != nil {
		t.Fatal(err)
	}
	lo, hi, _ := f.Domain()
	if lo != 0.01 || hi != 2 {
		t.Fatalf("unexpected domain [%f, %f]", lo, hi)
	}
	if math.IsNaN(f.At(0.3)) || f.At(0.3) <= 0 {
		t.Fatalf("drag coefficient %f", f.At(0.3))
	}
	if _, err := LoadFunctionCSV("data/calisto/nope.csv", ConstantExtrapolation); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
