package rocketsim

import "errors"

var (
	// ErrNonMonotonicProfile is returned when an altitude-indexed profile is not strictly increasing.
	ErrNonMonotonicProfile = errors.New("profile is not strictly increasing")
	// ErrUnsupportedAtmosphere is returned for atmospheric models which are not implemented (e.g. forecast grids).
	ErrUnsupportedAtmosphere = errors.New("unsupported atmospheric model")
	// ErrMalformedThrustCurve is returned when a thrust curve cannot be parsed.
	ErrMalformedThrustCurve = errors.New("malformed thrust curve")
	// ErrMalformedSounding is returned when a sounding text cannot be parsed.
	ErrMalformedSounding = errors.New("malformed sounding")
	// ErrInvalidMotor is returned when a motor is inconsistently defined.
	ErrInvalidMotor = errors.New("invalid motor")
	// ErrTankOverfilled is returned when the liquid in a tank would not fit in its geometry.
	ErrTankOverfilled = errors.New("tank overfilled")
	// ErrInvalidRocket is returned by Rocket.Validate.
	ErrInvalidRocket = errors.New("invalid rocket")
	// ErrInvalidFlight is returned when a flight cannot be set up.
	ErrInvalidFlight = errors.New("invalid flight")
	// ErrNoLiftoff is returned when the rocket never leaves the launch rail.
	ErrNoLiftoff = errors.New("rocket did not leave the rail")
	// ErrNaNState is returned when the equations of motion produce a non finite value.
	ErrNaNState = errors.New("non finite state")
	// ErrStepTooSmall is returned when the adaptive step size falls under the configured minimum.
	ErrStepTooSmall = errors.New("step size too small")
)
