package rocketsim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EngHeader is the header line of a RASP (.eng) thrust curve.
type EngHeader struct {
	Name           string
	Diameter       float64 // mm
	Length         float64 // mm
	Delays         string
	PropellantMass float64 // kg
	TotalMass      float64 // kg
	Manufacturer   string
}

// EngCurve is a parsed RASP thrust curve.
type EngCurve struct {
	Header   EngHeader
	Comments []string
	Times    []float64
	Thrusts  []float64
}

// Function returns the thrust curve as a zero extrapolated Function.
func (c *EngCurve) Function() (*Function, error) {
	return NewTabulatedFunction(c.Times, c.Thrusts, ZeroExtrapolation)
}

// ParseEng parses a RASP thrust curve. Comment lines start with ';'. A
// leading (0, 0) point is added if the curve does not start at zero.
func ParseEng(r io.Reader) (*EngCurve, error) {
	sc := bufio.NewScanner(r)
	curve := &EngCurve{}
	headerRead := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			curve.Comments = append(curve.Comments, strings.TrimSpace(strings.TrimPrefix(line, ";")))
			continue
		}
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		fields := strings.Fields(line)
		if !headerRead {
			if len(fields) < 7 {
				return nil, fmt.Errorf("line %d: header needs 7 fields, got %d: %w", lineNo, len(fields), ErrMalformedThrustCurve)
			}
			var err error
			h := EngHeader{Name: fields[0], Delays: fields[3], Manufacturer: strings.Join(fields[6:], " ")}
			for i, dst := range []*float64{&h.Diameter, &h.Length, nil, &h.PropellantMass, &h.TotalMass} {
				if dst == nil {
					continue
				}
				if *dst, err = strconv.ParseFloat(fields[i+1], 64); err != nil {
					return nil, fmt.Errorf("line %d: header field %d: %w", lineNo, i+2, ErrMalformedThrustCurve)
				}
			}
			curve.Header = h
			headerRead = true
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected `time thrust`, got %q: %w", lineNo, line, ErrMalformedThrustCurve)
		}
		t, errT := strconv.ParseFloat(fields[0], 64)
		thrust, errF := strconv.ParseFloat(fields[1], 64)
		if errT != nil || errF != nil {
			return nil, fmt.Errorf("line %d: invalid number in %q: %w", lineNo, line, ErrMalformedThrustCurve)
		}
		if n := len(curve.Times); n > 0 && t <= curve.Times[n-1] {
			return nil, fmt.Errorf("line %d: time %g not after %g: %w", lineNo, t, curve.Times[n-1], ErrMalformedThrustCurve)
		}
		if t < 0 || thrust < 0 {
			return nil, fmt.Errorf("line %d: negative value: %w", lineNo, ErrMalformedThrustCurve)
		}
		curve.Times = append(curve.Times, t)
		curve.Thrusts = append(curve.Thrusts, thrust)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !headerRead || len(curve.Times) == 0 {
		return nil, fmt.Errorf("no data points: %w", ErrMalformedThrustCurve)
	}
	if curve.Times[0] != 0 {
		curve.Times = append([]float64{0}, curve.Times...)
		curve.Thrusts = append([]float64{0}, curve.Thrusts...)
	}
	return curve, nil
}

// LoadEng parses a RASP thrust curve file.
func LoadEng(path string) (*EngCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ParseEng(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadThrustCurve loads a .eng or a two column .csv thrust curve.
func LoadThrustCurve(path string) (*Function, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eng":
		c, err := LoadEng(path)
		if err != nil {
			return nil, err
		}
		return c.Function()
	case ".csv":
		return LoadFunctionCSV(path, ZeroExtrapolation)
	}
	return nil, fmt.Errorf("%s: unknown thrust curve format: %w", path, ErrMalformedThrustCurve)
}
