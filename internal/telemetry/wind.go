package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// MissingInputError is returned when a true wind derivation lacks apparent
// wind speed, apparent wind angle or boat speed.
type MissingInputError struct {
	Missing []Field
}

func (e *MissingInputError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		names = append(names, string(f))
	}
	return fmt.Sprintf("true wind: missing input %s", strings.Join(names, ", "))
}

// TrueWind derives true wind speed and angle (degrees in [0,360)) from the
// apparent wind and the boat speed through the water. Both results are
// rounded to two decimals.
func TrueWind(aws, awaDeg, boatSpeed float64) (tws, twaDeg float64) {
	a := awaDeg * math.Pi / 180
	x := aws*math.Cos(a) - boatSpeed
	y := aws * math.Sin(a)

	tws = round2(math.Hypot(x, y))
	twaDeg = round2(math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360))
	if twaDeg >= 360 {
		twaDeg = 0
	}
	return tws, twaDeg
}

// EnrichTrueWind adds TWS and TWA to v when AWS, AWA and speed are present.
// On a *MissingInputError v is left untouched.
func EnrichTrueWind(v Values) error {
	aws, okS := v.Float(AWS)
	awa, okA := v.Float(AWA)
	vs, okV := v.Float(Speed)
	if !okS || !okA || !okV {
		e := &MissingInputError{}
		if !okS {
			e.Missing = append(e.Missing, AWS)
		}
		if !okA {
			e.Missing = append(e.Missing, AWA)
		}
		if !okV {
			e.Missing = append(e.Missing, Speed)
		}
		return e
	}
	tws, twa := TrueWind(aws, awa, vs)
	v[TWS] = Number(tws)
	v[TWA] = Number(twa)
	return nil
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
