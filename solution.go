package rocketsim

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// State is [x y z vx vy vz e0 e1 e2 e3 w1 w2 w3]: position and velocity of
// the center of mass in the launch site frame (x east, y north, z up, origin
// on the ground at the rail base), attitude quaternion and body angular rates.
type State [13]float64

// Position returns the position (m).
func (y State) Position() []float64 {
	return []float64{y[0], y[1], y[2]}
}

// Velocity returns the velocity (m/s).
func (y State) Velocity() []float64 {
	return []float64{y[3], y[4], y[5]}
}

// Attitude returns the attitude quaternion.
func (y State) Attitude() Quaternion {
	return Quaternion{y[6], y[7], y[8], y[9]}
}

// AngularVelocity returns the body angular rates (rad/s).
func (y State) AngularVelocity() []float64 {
	return []float64{y[10], y[11], y[12]}
}

// Speed returns the norm of the velocity.
func (y State) Speed() float64 {
	return norm(y.Velocity())
}

// Sample is one point of the trajectory.
type Sample struct {
	T float64
	Y State
	A [3]float64 // acceleration in the launch site frame
}

// EventKind identifies a flight event.
type EventKind uint8

const (
	EventLiftoff EventKind = iota + 1
	EventRailExit
	EventBurnOut
	EventApogee
	EventParachuteTrigger
	EventParachuteDeploy
	EventImpact
	EventMaxTime
)

var eventNames = map[EventKind]string{
	EventLiftoff:          "liftoff",
	EventRailExit:         "rail_exit",
	EventBurnOut:          "burnout",
	EventApogee:           "apogee",
	EventParachuteTrigger: "parachute_trigger",
	EventParachuteDeploy:  "parachute_deploy",
	EventImpact:           "impact",
	EventMaxTime:          "max_time",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FlightEvent is an event which happened during a flight.
type FlightEvent struct {
	Kind   EventKind `json:"kind"`
	T      float64   `json:"t"`
	Y      State     `json:"-"`
	Detail string    `json:"detail,omitempty"`
}

// Solution is the trajectory of a flight. Samples are appended in time order.
type Solution struct {
	samples      []Sample
	events       []FlightEvent
	env          *Environment
	rocket       *Rocket
	railVelocity float64
	railMargin   float64
}

func newSolution(env *Environment, rocket *Rocket) *Solution {
	return &Solution{env: env, rocket: rocket}
}

func (s *Solution) append(smp Sample) {
	if n := len(s.samples); n > 0 && smp.T <= s.samples[n-1].T {
		// Same time (e.g. node handling): the latest state wins.
		s.samples[n-1] = smp
		return
	}
	s.samples = append(s.samples, smp)
}

func (s *Solution) addEvent(e FlightEvent) {
	s.events = append(s.events, e)
}

// Samples returns the trajectory samples.
func (s *Solution) Samples() []Sample {
	return s.samples
}

// Events returns the flight events in chronological order.
func (s *Solution) Events() []FlightEvent {
	return s.events
}

// Event returns the first event of the provided kind.
func (s *Solution) Event(kind EventKind) (FlightEvent, bool) {
	for _, e := range s.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return FlightEvent{}, false
}

// Duration returns the time of the last sample.
func (s *Solution) Duration() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[len(s.samples)-1].T
}

// At linearly interpolates the state at time t (clamped to the solution bounds).
func (s *Solution) At(t float64) State {
	n := len(s.samples)
	if n == 0 {
		return State{}
	}
	if t <= s.samples[0].T {
		return s.samples[0].Y
	}
	if t >= s.samples[n-1].T {
		return s.samples[n-1].Y
	}
	i := sort.Search(n, func(i int) bool { return s.samples[i].T >= t })
	a, b := s.samples[i-1], s.samples[i]
	f := (t - a.T) / (b.T - a.T)
	var y State
	for k := range y {
		y[k] = a.Y[k] + f*(b.Y[k]-a.Y[k])
	}
	q := y.Attitude().Normalize()
	copy(y[6:10], q[:])
	return y
}

// Altitude returns the altitude above sea level of a state.
func (s *Solution) Altitude(y State) float64 {
	return y[2] + s.env.Elevation
}

// Apogee returns the apogee altitude above sea level (m).
func (s *Solution) Apogee() float64 {
	if e, ok := s.Event(EventApogee); ok {
		return s.Altitude(e.Y)
	}
	max := math.Inf(-1)
	for _, smp := range s.samples {
		max = math.Max(max, smp.Y[2])
	}
	return max + s.env.Elevation
}

// ApogeeTime returns the time of apogee, or NaN if not reached.
func (s *Solution) ApogeeTime() float64 {
	if e, ok := s.Event(EventApogee); ok {
		return e.T
	}
	return math.NaN()
}

// ApogeeXY returns the east and north position at apogee.
func (s *Solution) ApogeeXY() (x, y float64) {
	if e, ok := s.Event(EventApogee); ok {
		return e.Y[0], e.Y[1]
	}
	return math.NaN(), math.NaN()
}

// OutOfRailTime returns the time the rocket left the rail, or NaN.
func (s *Solution) OutOfRailTime() float64 {
	if e, ok := s.Event(EventRailExit); ok {
		return e.T
	}
	return math.NaN()
}

// OutOfRailVelocity returns the speed when leaving the rail, or NaN.
func (s *Solution) OutOfRailVelocity() float64 {
	if e, ok := s.Event(EventRailExit); ok {
		return e.Y.Speed()
	}
	return math.NaN()
}

// OutOfRailStaticMargin returns the static margin (calibers) when leaving the rail, or NaN.
func (s *Solution) OutOfRailStaticMargin() float64 {
	if e, ok := s.Event(EventRailExit); ok {
		return s.rocket.staticMarginAt(e.T, s.Mach(e.Y))
	}
	return math.NaN()
}

// Mach returns the Mach number of a state.
func (s *Solution) Mach(y State) float64 {
	u, v := s.env.WindVelocity(s.Altitude(y))
	rel := []float64{y[3] - u, y[4] - v, y[5]}
	return norm(rel) / s.env.SpeedOfSound(s.Altitude(y))
}

// MaxSpeed returns the maximum speed and the time it is reached.
func (s *Solution) MaxSpeed() (speed, t float64) {
	for _, smp := range s.samples {
		if v := smp.Y.Speed(); v > speed {
			speed, t = v, smp.T
		}
	}
	return
}

// MaxMach returns the maximum Mach number and the time it is reached.
func (s *Solution) MaxMach() (mach, t float64) {
	for _, smp := range s.samples {
		if m := s.Mach(smp.Y); m > mach {
			mach, t = m, smp.T
		}
	}
	return
}

// MaxAcceleration returns the maximum acceleration norm and the time it is reached.
func (s *Solution) MaxAcceleration() (acc, t float64) {
	for _, smp := range s.samples {
		if a := norm(smp.A[:]); a > acc {
			acc, t = a, smp.T
		}
	}
	return
}

// ImpactTime returns the time of impact, or NaN.
func (s *Solution) ImpactTime() float64 {
	if e, ok := s.Event(EventImpact); ok {
		return e.T
	}
	return math.NaN()
}

// ImpactVelocity returns the vertical velocity at impact (negative), or NaN.
func (s *Solution) ImpactVelocity() float64 {
	if e, ok := s.Event(EventImpact); ok {
		return e.Y[5]
	}
	return math.NaN()
}

// ImpactXY returns the east and north impact position, or the last position if there was no impact.
func (s *Solution) ImpactXY() (x, y float64) {
	if e, ok := s.Event(EventImpact); ok {
		return e.Y[0], e.Y[1]
	}
	if n := len(s.samples); n > 0 {
		return s.samples[n-1].Y[0], s.samples[n-1].Y[1]
	}
	return math.NaN(), math.NaN()
}

// Drift returns the horizontal distance between the rail and the impact point.
func (s *Solution) Drift() float64 {
	x, y := s.ImpactXY()
	return math.Hypot(x, y)
}

// LatLon returns the latitude and longitude (deg) at time t.
func (s *Solution) LatLon(t float64) (lat, lon float64) {
	y := s.At(t)
	return s.env.LocalToGeodetic(y[0], y[1])
}

// Latitude returns the latitude (deg) at time t.
func (s *Solution) Latitude(t float64) float64 {
	lat, _ := s.LatLon(t)
	return lat
}

// Longitude returns the longitude (deg) at time t.
func (s *Solution) Longitude(t float64) float64 {
	_, lon := s.LatLon(t)
	return lon
}

// Summary is the JSON friendly digest of a flight.
type Summary struct {
	OutOfRailTime         float64       `json:"out_of_rail_time_s"`
	OutOfRailVelocity     float64       `json:"out_of_rail_velocity_m_s"`
	OutOfRailStaticMargin float64       `json:"out_of_rail_static_margin_cal"`
	BurnOutTime           float64       `json:"burnout_time_s"`
	Apogee                float64       `json:"apogee_asl_m"`
	ApogeeAGL             float64       `json:"apogee_agl_m"`
	ApogeeTime            float64       `json:"apogee_time_s"`
	ApogeeLatitude        float64       `json:"apogee_latitude_deg"`
	ApogeeLongitude       float64       `json:"apogee_longitude_deg"`
	MaxSpeed              float64       `json:"max_speed_m_s"`
	MaxMach               float64       `json:"max_mach"`
	MaxAcceleration       float64       `json:"max_acceleration_m_s2"`
	ImpactTime            float64       `json:"impact_time_s"`
	ImpactVelocity        float64       `json:"impact_velocity_m_s"`
	ImpactX               float64       `json:"impact_x_m"`
	ImpactY               float64       `json:"impact_y_m"`
	ImpactLatitude        float64       `json:"impact_latitude_deg"`
	ImpactLongitude       float64       `json:"impact_longitude_deg"`
	Drift                 float64       `json:"drift_m"`
	Events                []FlightEvent `json:"events"`
	Samples               int           `json:"samples"`
}

// Summary returns the digest of this solution. Undefined values are NaN.
func (s *Solution) Summary() Summary {
	sum := Summary{
		OutOfRailTime:         s.OutOfRailTime(),
		OutOfRailVelocity:     s.OutOfRailVelocity(),
		OutOfRailStaticMargin: s.OutOfRailStaticMargin(),
		BurnOutTime:           s.rocket.motor.BurnOutTime(),
		Apogee:                s.Apogee(),
		ApogeeTime:            s.ApogeeTime(),
		ImpactTime:            s.ImpactTime(),
		ImpactVelocity:        s.ImpactVelocity(),
		Drift:                 s.Drift(),
		Events:                s.events,
		Samples:               len(s.samples),
	}
	sum.ApogeeAGL = sum.Apogee - s.env.Elevation
	sum.MaxSpeed, _ = s.MaxSpeed()
	sum.MaxMach, _ = s.MaxMach()
	sum.MaxAcceleration, _ = s.MaxAcceleration()
	ax, ay := s.ApogeeXY()
	sum.ApogeeLatitude, sum.ApogeeLongitude = s.env.LocalToGeodetic(ax, ay)
	sum.ImpactX, sum.ImpactY = s.ImpactXY()
	sum.ImpactLatitude, sum.ImpactLongitude = s.env.LocalToGeodetic(sum.ImpactX, sum.ImpactY)
	return sum
}

// MarshalJSON writes undefined (NaN) values as null.
func (sum Summary) MarshalJSON() ([]byte, error) {
	return marshalNullNaN(sum)
}

// marshalNullNaN encodes the tagged fields of the struct v, non finite floats as null.
func marshalNullNaN(v interface{}) ([]byte, error) {
	out := make(map[string]interface{})
	rv := reflect.ValueOf(v)
	for i := 0; i < rv.NumField(); i++ {
		name := strings.Split(rv.Type().Field(i).Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		val := rv.Field(i).Interface()
		if f, ok := val.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			val = nil
		}
		out[name] = val
	}
	return json.Marshal(out)
}
