package telemetry

import "logbook/internal/nmea"

// Snapshot is the latest-value-per-field state of the current flush
// interval. It is not safe for concurrent use; the ingest loop owns it.
type Snapshot struct {
	values Values
}

func NewSnapshot() *Snapshot {
	return &Snapshot{values: Values{}}
}

// Update copies the extracted attributes of one sentence into the snapshot
// and returns how many keys were written. Later sentences overwrite earlier
// ones key by key; attributes missing from the sentence leave the key as is.
func (s *Snapshot) Update(f nmea.Fields) int {
	w := writer{v: s.values}
	switch f := f.(type) {
	case nmea.DPT:
		w.num(Depth, f.Depth)
	case nmea.GGA:
		w.num(Lat, f.Lat)
		w.text(LatDir, f.LatDir)
		w.num(Lon, f.Lon)
		w.text(LonDir, f.LonDir)
		w.int(NumSats, f.NumSats)
		w.num(HorizontalDil, f.HorizontalDil)
		w.num(Altitude, f.Altitude)
		w.num(GeoSep, f.GeoSep)
	case nmea.HDG:
		w.num(Heading, f.Heading)
	case nmea.HDT:
		// Whitelisted but carries nothing the snapshot stores.
	case nmea.MTW:
		w.num(Temperature, f.Temperature)
	case nmea.MWV:
		w.num(AWA, f.WindAngle)
		w.num(AWS, f.WindSpeed)
	case nmea.RMC:
		w.num(Speed, f.SpeedOverGround)
		w.num(TrueCourse, f.TrueCourse)
		w.num(MagVar, f.MagVariation)
		w.text(MagVarDir, f.MagVarDir)
	case nmea.ROT:
		w.num(RateOfTurn, f.RateOfTurn)
	case nmea.VHW:
		w.num(TrueHeading, f.HeadingTrue)
		w.num(HeadingMagnetic, f.HeadingMagnetic)
		w.num(WaterSpeed, f.WaterSpeedKnots)
	case nmea.VLW:
		w.num(TripDistance, f.TripDistance)
	case nmea.VTG:
		w.num(TrueTrack, f.TrueTrack)
		w.num(MagTrack, f.MagTrack)
	case nmea.ZDA:
		w.int(LocalZone, f.LocalZone)
	}
	return w.n
}

// Get returns the current value of a field.
func (s *Snapshot) Get(f Field) (Value, bool) {
	v, ok := s.values[f]
	return v, ok
}

func (s *Snapshot) Len() int { return len(s.values) }

// TakeAndReset hands the accumulated values to the caller and leaves the
// snapshot empty. The returned map is no longer referenced by s.
func (s *Snapshot) TakeAndReset() Values {
	out := s.values
	s.values = Values{}
	return out
}

type writer struct {
	v Values
	n int
}

func (w *writer) num(f Field, p *float64) {
	if p == nil {
		return
	}
	w.v[f] = Number(*p)
	w.n++
}

func (w *writer) int(f Field, p *int) {
	if p == nil {
		return
	}
	w.v[f] = Number(float64(*p))
	w.n++
}

func (w *writer) text(f Field, p *string) {
	if p == nil {
		return
	}
	w.v[f] = Text(*p)
	w.n++
}
