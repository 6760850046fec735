package rocketsim

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	soundingMissing = 99999
	knot            = 0.514444 // m/s
	// maxSoundingSize bounds a fetched sounding body.
	maxSoundingSize = 4 << 20
)

// SoundingAtmosphere is an atmosphere built from a NOAA RUC sounding in the GSD text format.
type SoundingAtmosphere struct {
	*CustomAtmosphere
	Station   string
	ValidTime time.Time
	Levels    int // number of data lines kept
}

func (a *SoundingAtmosphere) String() string {
	return fmt.Sprintf("NOAA RUC sounding %s valid %s (%d levels)", a.Station, a.ValidTime.Format(time.RFC3339), a.Levels)
}

type soundingLevel struct {
	pressure, height, temperature, direction, speed float64
}

// ParseSounding parses a GSD formatted sounding. Lines of type 4 to 9 are
// data lines: pressure (tenths of hPa), height (m), temperature and dew
// point (tenths of °C), wind direction (deg) and wind speed.
func ParseSounding(r io.Reader) (*SoundingAtmosphere, error) {
	sc := bufio.NewScanner(r)
	var (
		levels  []soundingLevel
		station string
		valid   time.Time
		speedK  = knot
	)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		lineType, err := strconv.Atoi(fields[0])
		if err != nil {
			// Free text header such as "RAOB sounding valid at:"
			continue
		}
		switch lineType {
		case 254:
			if len(fields) >= 5 {
				if t, err := time.Parse("15 2 Jan 2006", strings.Join([]string{fields[1], fields[2], titleMonth(fields[3]), fields[4]}, " ")); err == nil {
					valid = t.UTC()
				}
			}
		case 3:
			if len(fields) >= 2 {
				station = fields[1]
				switch strings.ToLower(fields[len(fields)-1]) {
				case "kt":
					speedK = knot
				case "ms":
					speedK = 0.1
				}
			}
		case 4, 5, 6, 7, 8, 9:
			if len(fields) < 7 {
				return nil, fmt.Errorf("line %d: expected 7 columns, got %d: %w", lineNo, len(fields), ErrMalformedSounding)
			}
			var vals [6]float64
			for i := range vals {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", lineNo, err, ErrMalformedSounding)
				}
				vals[i] = v
			}
			levels = append(levels, soundingLevel{pressure: vals[0], height: vals[1], temperature: vals[2], direction: vals[4], speed: vals[5]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var pH, pV, tH, tV, wH, wU, wV []float64
	last := -1
	for i, l := range levels {
		if l.height == soundingMissing {
			continue
		}
		if last >= 0 && l.height <= levels[last].height {
			return nil, fmt.Errorf("level %d at %g m after %g m: %w", i, l.height, levels[last].height, ErrNonMonotonicProfile)
		}
		last = i
		if l.pressure != soundingMissing {
			pH = append(pH, l.height)
			pV = append(pV, l.pressure*10) // tenths of hPa to Pa
		}
		if l.temperature != soundingMissing {
			tH = append(tH, l.height)
			tV = append(tV, l.temperature/10+273.15)
		}
		if l.direction != soundingMissing && l.speed != soundingMissing {
			sψ, cψ := sincosDeg(l.direction)
			spd := l.speed * speedK
			wH = append(wH, l.height)
			// Direction is where the wind blows from.
			wU = append(wU, -spd*sψ)
			wV = append(wV, -spd*cψ)
		}
	}
	if len(pH) == 0 || len(tH) == 0 {
		return nil, fmt.Errorf("no usable pressure or temperature levels: %w", ErrMalformedSounding)
	}
	pressure, err := NewTabulatedFunction(pH, pV, ConstantExtrapolation)
	if err != nil {
		return nil, err
	}
	temperature, err := NewTabulatedFunction(tH, tV, ConstantExtrapolation)
	if err != nil {
		return nil, err
	}
	var windU, windV *Function
	if len(wH) > 0 {
		if windU, err = NewTabulatedFunction(wH, wU, ConstantExtrapolation); err != nil {
			return nil, err
		}
		if windV, err = NewTabulatedFunction(wH, wV, ConstantExtrapolation); err != nil {
			return nil, err
		}
	}
	custom, err := NewCustomAtmosphere("sounding "+station, pressure, temperature, windU, windV)
	if err != nil {
		return nil, err
	}
	return &SoundingAtmosphere{CustomAtmosphere: custom, Station: station, ValidTime: valid, Levels: len(levels)}, nil
}

func titleMonth(m string) string {
	if len(m) < 2 {
		return m
	}
	return strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
}

// SoundingFetcher retrieves raw soundings over HTTP.
type SoundingFetcher struct {
	httpClient *http.Client
}

// NewSoundingFetcher returns a fetcher with the provided timeout, or the configured one if zero.
func NewSoundingFetcher(timeout time.Duration) *SoundingFetcher {
	if timeout <= 0 {
		timeout = rocketsimConfig().soundingTimeout
	}
	return &SoundingFetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch performs an HTTP GET on the sounding URL and returns the raw body.
func (f *SoundingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sounding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSoundingSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxSoundingSize {
		return nil, fmt.Errorf("sounding from %s exceeds %d bytes: %w", url, maxSoundingSize, ErrMalformedSounding)
	}
	return body, nil
}

// Sounding fetches and parses a sounding.
func (f *SoundingFetcher) Sounding(ctx context.Context, url string) (*SoundingAtmosphere, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseSounding(bytes.NewReader(body))
}
