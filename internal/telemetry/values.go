package telemetry

import (
	"encoding/json"
	"strconv"
	"time"
)

// Field is a snapshot key. Names match the navigation_data columns.
type Field string

const (
	RateOfTurn      Field = "rate_of_turn"
	Heading         Field = "heading"
	AWA             Field = "AWA"
	AWS             Field = "AWS"
	TrueTrack       Field = "true_track"
	MagTrack        Field = "mag_track"
	Speed           Field = "speed"
	TrueCourse      Field = "true_course"
	MagVar          Field = "mag_var"
	MagVarDir       Field = "mag_var_dir"
	TrueHeading     Field = "true_heading"
	HeadingMagnetic Field = "heading_magnetic"
	WaterSpeed      Field = "water_speed"
	Temperature     Field = "temperature"
	Depth           Field = "depth"
	TripDistance    Field = "trip_distance"
	Lat             Field = "lat"
	LatDir          Field = "lat_dir"
	Lon             Field = "lon"
	LonDir          Field = "lon_dir"
	NumSats         Field = "num_sats"
	HorizontalDil   Field = "horizontal_dil"
	Altitude        Field = "altitude"
	GeoSep          Field = "geo_sep"
	TWA             Field = "TWA"
	TWS             Field = "TWS"
	LocalZone       Field = "local_zone"
)

// AllFields lists every field in storage column order.
var AllFields = []Field{
	RateOfTurn, Heading, AWA, AWS, TrueTrack, MagTrack, Speed, TrueCourse,
	MagVar, MagVarDir, TrueHeading, HeadingMagnetic, WaterSpeed, Temperature,
	Depth, TripDistance, Lat, LatDir, Lon, LonDir, NumSats, HorizontalDil,
	Altitude, GeoSep, TWA, TWS, LocalZone,
}

// textFields hold short strings (hemisphere / direction letters).
var textFields = map[Field]bool{
	MagVarDir: true,
	LatDir:    true,
	LonDir:    true,
}

// integerFields are stored in INTEGER columns.
var integerFields = map[Field]bool{
	NumSats:   true,
	LocalZone: true,
}

// IsText reports whether the field carries a string value.
func (f Field) IsText() bool { return textFields[f] }

// IsInteger reports whether the field carries a whole number.
func (f Field) IsInteger() bool { return integerFields[f] }

// Value is a numeric or short-string reading.
type Value struct {
	num  float64
	str  string
	text bool
}

func Number(v float64) Value { return Value{num: v} }
func Text(s string) Value    { return Value{str: s, text: true} }

func (v Value) IsText() bool { return v.text }

// Float returns the numeric value; ok is false for text values.
func (v Value) Float() (float64, bool) {
	if v.text {
		return 0, false
	}
	return v.num, true
}

func (v Value) String() string {
	if v.text {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.text {
		return json.Marshal(v.str)
	}
	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// Values maps fields to their most recent reading. Absent keys mean "not
// observed"; they are never zero-filled.
type Values map[Field]Value

// Float returns a numeric field; ok is false when absent or textual.
func (v Values) Float(f Field) (float64, bool) {
	val, ok := v[f]
	if !ok {
		return 0, false
	}
	return val.Float()
}

// Text returns a string field; ok is false when absent or numeric.
func (v Values) Text(f Field) (string, bool) {
	val, ok := v[f]
	if !ok || !val.IsText() {
		return "", false
	}
	return val.str, true
}

// Present lists the fields held in v, in storage column order.
func (v Values) Present() []Field {
	out := make([]Field, 0, len(v))
	for _, f := range AllFields {
		if _, ok := v[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Record is a timestamped snapshot as handed to a sink.
type Record struct {
	Time   time.Time `json:"time"`
	Values Values    `json:"values"`
}
