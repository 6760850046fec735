package rocketsim

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	kml "github.com/twpayne/go-kml"
)

// trajectoryHeader lists the CSV columns of a trajectory.
var trajectoryHeader = []string{"t", "x", "y", "z", "vx", "vy", "vz", "e0", "e1", "e2", "e3", "w1", "w2", "w3", "ax", "ay", "az"}

// ExportConfig configures the exporting of a flight.
type ExportConfig struct {
	Filename  string
	Dir       string // defaults to the configured output path
	CSV       bool   // stream the trajectory as CSV while flying
	Compress  bool   // zstd compress the CSV (.csv.zst)
	KML       bool   // write the trajectory as KML after the flight
	Summary   bool   // write the JSON summary after the flight
	Timestamp bool   // add the creation time to the file names
	Color     color.Color
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.CSV && !c.KML && !c.Summary
}

func (c ExportConfig) wantsFiles() bool {
	return c.KML || c.Summary
}

// path returns the full path of an exported file with the provided prefix and extension.
func (c ExportConfig) path(prefix, ext string) string {
	dir := c.Dir
	if dir == "" {
		dir = rocketsimConfig().outputDir
	}
	name := c.Filename
	if name == "" {
		name = "flight"
	}
	if c.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, name, ext))
}

// TrajectoryPath returns where the trajectory CSV is streamed.
func (c ExportConfig) TrajectoryPath() string {
	if c.Compress {
		return c.path("traj", "csv.zst")
	}
	return c.path("traj", "csv")
}

type multiCloser struct {
	io.Writer
	closers []io.Closer
}

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// CreateTrajectoryFile creates the file at path, zstd compressed when its name
// ends with .zst. The returned writer must be closed!
func CreateTrajectoryFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	// The encoder must be flushed before the file is closed.
	return multiCloser{Writer: enc, closers: []io.Closer{enc, f}}, nil
}

func writeTrajectoryHeader(w io.Writer, env *Environment) error {
	_, err := fmt.Fprintf(w, `# Creation date (UTC): %s
# Records are <t> <position> <velocity> <attitude quaternion> <angular velocity> <acceleration>
#   Time in seconds since ignition
#   Position in m in the launch site frame (x east, y north, z up above the rail base)
#   Velocity in m/s, acceleration in m/s^2, angular velocity in rad/s (body frame)
#   Launch site: %s
`, time.Now().UTC(), env)
	return err
}

func sampleRecord(smp Sample) []string {
	rec := make([]string, 0, len(trajectoryHeader))
	rec = append(rec, strconv.FormatFloat(smp.T, 'f', 6, 64))
	for _, v := range smp.Y {
		rec = append(rec, strconv.FormatFloat(v, 'g', 10, 64))
	}
	for _, v := range smp.A {
		rec = append(rec, strconv.FormatFloat(v, 'g', 8, 64))
	}
	return rec
}

// WriteCSV writes the whole trajectory of a solution as CSV.
func WriteCSV(w io.Writer, sol *Solution) error {
	if err := writeTrajectoryHeader(w, sol.env); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(trajectoryHeader); err != nil {
		return err
	}
	for _, smp := range sol.samples {
		if err := cw.Write(sampleRecord(smp)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StreamSamples streams the output of the channel to the trajectory file of conf.
// The channel is always drained, even after a write error, which is then returned.
func StreamSamples(conf ExportConfig, env *Environment, sampleChan <-chan Sample) (err error) {
	defer func() {
		for range sampleChan {
		}
	}()
	f, err := CreateTrajectoryFile(conf.TrajectoryPath())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err = writeTrajectoryHeader(bw, env); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err = cw.Write(trajectoryHeader); err != nil {
		return err
	}
	for smp := range sampleChan {
		if err = cw.Write(sampleRecord(smp)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadCSV parses a trajectory written by WriteCSV or StreamSamples.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = len(trajectoryHeader)
	var samples []Sample
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 && rec[0] == trajectoryHeader[0] {
			continue
		}
		vals := make([]float64, len(rec))
		for i, field := range rec {
			if vals[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
				return nil, fmt.Errorf("record %d column %s: %w", line, trajectoryHeader[i], err)
			}
		}
		var smp Sample
		smp.T = vals[0]
		copy(smp.Y[:], vals[1:14])
		copy(smp.A[:], vals[14:])
		samples = append(samples, smp)
	}
	return samples, nil
}

// LoadTrajectory reads a trajectory file, zstd compressed if its name ends with .zst.
func LoadTrajectory(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(path, ".zst") {
		return ReadCSV(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return ReadCSV(dec)
}

// WriteKML writes the trajectory as a KML line string with absolute altitudes,
// plus the apogee and impact points when reached.
func WriteKML(w io.Writer, sol *Solution, name string, c color.Color) error {
	if c == nil {
		c = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	}
	coords := make([]kml.Coordinate, 0, len(sol.samples))
	for _, smp := range sol.samples {
		lat, lon := sol.env.LocalToGeodetic(smp.Y[0], smp.Y[1])
		coords = append(coords, kml.Coordinate{Lon: lon, Lat: lat, Alt: sol.Altitude(smp.Y)})
	}
	doc := []kml.Element{
		kml.Name(name),
		kml.SharedStyle("trajectory", kml.LineStyle(kml.Color(c), kml.Width(3))),
		kml.Placemark(
			kml.Name(name+" trajectory"),
			kml.StyleURL("#trajectory"),
			kml.LineString(
				kml.Extrude(false),
				kml.Tessellate(false),
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(coords...),
			),
		),
	}
	for _, kind := range []EventKind{EventApogee, EventImpact} {
		e, ok := sol.Event(kind)
		if !ok {
			continue
		}
		lat, lon := sol.env.LocalToGeodetic(e.Y[0], e.Y[1])
		doc = append(doc, kml.Placemark(
			kml.Name(kind.String()),
			kml.Description(fmt.Sprintf("t=%.3f s, altitude=%.1f m", e.T, sol.Altitude(e.Y))),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(kml.Coordinate{Lon: lon, Lat: lat, Alt: sol.Altitude(e.Y)}),
			),
		))
	}
	return kml.KML(kml.Document(doc...)).WriteIndent(w, "", "  ")
}

// WriteSummary writes the JSON summary of a solution.
func WriteSummary(w io.Writer, sol *Solution) error {
	sum, err := json.MarshalIndent(sol.Summary(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(sum, '\n'))
	return err
}

// Write writes the post flight files (KML, summary) requested by conf.
func (c ExportConfig) Write(sol *Solution) error {
	write := func(path string, fn func(io.Writer) error) (err error) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(f)
	}
	if c.KML {
		name := c.Filename
		if name == "" {
			name = "flight"
		}
		if err := write(c.path("traj", "kml"), func(w io.Writer) error { return WriteKML(w, sol, name, c.Color) }); err != nil {
			return err
		}
	}
	if c.Summary {
		if err := write(c.path("summary", "json"), func(w io.Writer) error { return WriteSummary(w, sol) }); err != nil {
			return err
		}
	}
	return nil
}
