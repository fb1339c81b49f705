package odbtype

import "fmt"

// Coordinates is a right-ascension/declination pair (spec.md §3,
// Observation: "optional explicit base coordinates").
type Coordinates struct {
	RA  Angle
	Dec Angle
}

func (c Coordinates) String() string {
	return fmt.Sprintf("RA %.4f° Dec %.4f°", c.RA.Degrees(), c.Dec.Degrees())
}

// ElevationRangeKind selects whether an Observation's elevation
// constraint is expressed as an air-mass range or an hour-angle range
// (spec.md §3).
type ElevationRangeKind string

const (
	ElevationAirMass   ElevationRangeKind = "AIR_MASS"
	ElevationHourAngle ElevationRangeKind = "HOUR_ANGLE"
)

// ElevationRange is a closed [Min, Max] range in whichever unit Kind
// selects; Min/Max are plain floats (air-mass factor or hour-angle
// hours) since they are not physical angles in the Angle sense.
type ElevationRange struct {
	Kind ElevationRangeKind
	Min  float64
	Max  float64
}

// PositionAngleConstraintKind is the flavor of position-angle
// constraint an Observation may carry (spec.md §3).
type PositionAngleConstraintKind string

const (
	PositionAngleUnbounded    PositionAngleConstraintKind = "UNBOUNDED"
	PositionAngleFixed        PositionAngleConstraintKind = "FIXED"
	PositionAngleAllowFlip    PositionAngleConstraintKind = "ALLOW_FLIP"
	PositionAngleAverageParallactic PositionAngleConstraintKind = "AVERAGE_PARALLACTIC"
	PositionAngleParallacticOverride PositionAngleConstraintKind = "PARALLACTIC_OVERRIDE"
)

// PositionAngleConstraint pairs a kind with the fixed angle it applies
// to (meaningful only for Fixed/AllowFlip/ParallacticOverride).
type PositionAngleConstraint struct {
	Kind  PositionAngleConstraintKind
	Angle Angle
}

// ConstraintSet is the full set of observing conditions an Observation
// must be executed under (spec.md §3).
type ConstraintSet struct {
	CloudExtinction CloudExtinction
	ImageQuality    ImageQuality
	SkyBackground   SkyBackground
	WaterVapor      WaterVapor
	Elevation       ElevationRange
}
