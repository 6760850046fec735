package rocketsim

import (
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestParseEng(t *testing.T) {
	const eng = `; a comment
; another one
K100 54 400 6-10-14 0.9 1.5 Acme ; trailing
  0.5 100
  1.0 200 ; peak
  2.0 0
`
	c, err := ParseEng(strings.NewReader(eng))
	if err != nil {
		t.Fatal(err)
	}
	h := c.Header
	if h.Name != "K100" || h.Diameter != 54 || h.Length != 400 || h.Delays != "6-10-14" || h.PropellantMass != 0.9 || h.TotalMass != 1.5 || h.Manufacturer != "Acme" {
		t.Fatalf("invalid header %+v", h)
	}
	if len(c.Comments) != 2 {
		t.Fatalf("comments %v", c.Comments)
	}
	// A leading (0, 0) point is added.
	if !vectorsEqual(c.Times, []float64{0, 0.5, 1, 2}) || !vectorsEqual(c.Thrusts, []float64{0, 100, 200, 0}) {
		t.Fatalf("points %v %v", c.Times, c.Thrusts)
	}
	f, err := c.Function()
	if err != nil {
		t.Fatal(err)
	}
	if f.At(3) != 0 || f.At(-1) != 0 {
		t.Fatal("thrust must be zero outside of the curve")
	}
	if !scalar.EqualWithinAbs(f.Integral(0, 2), 25+75+100, 1e-9) {
		t.Fatalf("impulse %f", f.Integral(0, 2))
	}
}

func TestParseEngMalformed(t *testing.T) {
	for i, eng := range []string{
		"",
		"; only comments\n",
		"K100 54 400\n0.5 100\n",
		"K100 54 400 0 0.9 1.5 Acme\n",
		"K100 54 400 0 0.9 1.5 Acme\n0.5\n",
		"K100 54 400 0 0.9 1.5 Acme\n0.5 100\n0.4 100\n",
		"K100 54 400 0 0.9 1.5 Acme\n0.5 -100\n",
		"K100 5x4 400 0 0.9 1.5 Acme\n0.5 100\n",
	} {
		if _, err := ParseEng(strings.NewReader(eng)); !errors.Is(err, ErrMalformedThrustCurve) {
			t.Fatalf("case %d: expected ErrMalformedThrustCurve, got %v", i, err)
		}
	}
}

func TestLoadThrustCurve(t *testing.T) {
	c, err := LoadEng("data/motors/Cesaroni_M1670.eng")
	if err != nil {
		t.Fatal(err)
	}
	if c.Header.Name != "M1670-BS" || c.Header.Manufacturer != "CTI" {
		t.Fatalf("header %+v", c.Header)
	}
	f, err := LoadThrustCurve("data/motors/Cesaroni_M1670.eng")
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(f.Integral(0, 3.9), 6026.35, 1e-6) {
		t.Fatalf("total impulse %f", f.Integral(0, 3.9))
	}
	if _, err := LoadThrustCurve("data/calisto/powerOffDragCurve.txt"); !errors.Is(err, ErrMalformedThrustCurve) {
		t.Fatalf("expected ErrMalformedThrustCurve for an unknown extension, got %v", err)
	}
	if _, err := LoadThrustCurve("data/calisto/powerOffDragCurve.csv"); err != nil {
		t.Fatalf("csv thrust curve: %s", err)
	}
}
