package nmea

// Fields is the typed payload of one whitelisted sentence. The set of
// implementations is closed: one struct per Kind.
//
// Optional attributes are pointers; nil means the sentence left the field
// empty, which is different from a reported zero.
type Fields interface {
	Kind() Kind
	Talker() string
	sealed()
}

type header struct {
	talker string
}

func (h header) Talker() string { return h.talker }
func (header) sealed()          {}

// DPT: Depth of water.
//
//	1: depth below transducer (m)
//	2: transducer offset (m)
type DPT struct {
	header
	Depth  *float64
	Offset *float64
}

// GGA: Global Positioning System Fix Data.
//
//	1: time, 2/3: latitude N/S, 4/5: longitude E/W, 6: fix quality,
//	7: satellites, 8: HDOP, 9: altitude (m), 11: geoidal separation (m)
type GGA struct {
	header
	Time          *string
	Lat           *float64
	LatDir        *string
	Lon           *float64
	LonDir        *string
	Quality       *int
	NumSats       *int
	HorizontalDil *float64
	Altitude      *float64
	GeoSep        *float64
}

// HDG: Heading, deviation and variation.
type HDG struct {
	header
	Heading   *float64
	Deviation *float64
	DevDir    *string
	Variation *float64
	VarDir    *string
}

// HDT: Heading, true.
type HDT struct {
	header
	Heading *float64
}

// MTW: Mean water temperature.
type MTW struct {
	header
	Temperature *float64
	Units       *string
}

// MWV: Wind speed and angle relative to the bow.
//
//	1: angle (deg), 2: reference (R/T), 3: speed, 4: units, 5: status
type MWV struct {
	header
	WindAngle  *float64
	Reference  *string
	WindSpeed  *float64
	SpeedUnits *string
	Status     *string
}

// RMC: Recommended Minimum Specific GNSS Data.
//
//	1: time, 2: status, 3/4: lat, 5/6: lon, 7: SOG (kt), 8: COG (deg),
//	9: date, 10/11: magnetic variation E/W
type RMC struct {
	header
	Time            *string
	Status          *string
	Lat             *float64
	LatDir          *string
	Lon             *float64
	LonDir          *string
	SpeedOverGround *float64
	TrueCourse      *float64
	Date            *string
	MagVariation    *float64
	MagVarDir       *string
}

// ROT: Rate of turn (deg/min, negative to port).
type ROT struct {
	header
	RateOfTurn *float64
	Status     *string
}

// VHW: Water speed and heading.
//
//	1: heading true, 3: heading magnetic, 5: speed (kt), 7: speed (km/h)
type VHW struct {
	header
	HeadingTrue     *float64
	HeadingMagnetic *float64
	WaterSpeedKnots *float64
	WaterSpeedKmh   *float64
}

// VLW: Distance travelled through the water (nm).
type VLW struct {
	header
	TripDistance      *float64
	TripDistanceReset *float64
}

// VTG: Track made good and ground speed.
type VTG struct {
	header
	TrueTrack  *float64
	MagTrack   *float64
	SpeedKnots *float64
	SpeedKmh   *float64
}

// ZDA: Time and date with local zone.
type ZDA struct {
	header
	Time             *string
	Day              *int
	Month            *int
	Year             *int
	LocalZone        *int
	LocalZoneMinutes *int
}

func (DPT) Kind() Kind { return KindDPT }
func (GGA) Kind() Kind { return KindGGA }
func (HDG) Kind() Kind { return KindHDG }
func (HDT) Kind() Kind { return KindHDT }
func (MTW) Kind() Kind { return KindMTW }
func (MWV) Kind() Kind { return KindMWV }
func (RMC) Kind() Kind { return KindRMC }
func (ROT) Kind() Kind { return KindROT }
func (VHW) Kind() Kind { return KindVHW }
func (VLW) Kind() Kind { return KindVLW }
func (VTG) Kind() Kind { return KindVTG }
func (ZDA) Kind() Kind { return KindZDA }

// Parse decodes one raw line into the typed field set of its kind.
//
// The checksum is verified when present. Lines outside the whitelist return
// ErrUnsupported; empty fields decode to nil attributes.
func Parse(line string) (Fields, error) {
	s, err := splitSentence(line)
	if err != nil {
		return nil, err
	}
	r := &fieldReader{f: s.fields}
	h := header{talker: s.talker}

	var out Fields
	switch s.kind {
	case KindDPT:
		out = DPT{header: h, Depth: r.float(1, "depth"), Offset: r.float(2, "offset")}
	case KindGGA:
		out = GGA{
			header:        h,
			Time:          r.str(1),
			Lat:           r.float(2, "lat"),
			LatDir:        r.str(3),
			Lon:           r.float(4, "lon"),
			LonDir:        r.str(5),
			Quality:       r.int(6, "gps_qual"),
			NumSats:       r.int(7, "num_sats"),
			HorizontalDil: r.float(8, "horizontal_dil"),
			Altitude:      r.float(9, "altitude"),
			GeoSep:        r.float(11, "geo_sep"),
		}
	case KindHDG:
		out = HDG{
			header:    h,
			Heading:   r.float(1, "heading"),
			Deviation: r.float(2, "deviation"),
			DevDir:    r.str(3),
			Variation: r.float(4, "variation"),
			VarDir:    r.str(5),
		}
	case KindHDT:
		out = HDT{header: h, Heading: r.float(1, "heading")}
	case KindMTW:
		out = MTW{header: h, Temperature: r.float(1, "temperature"), Units: r.str(2)}
	case KindMWV:
		out = MWV{
			header:     h,
			WindAngle:  r.float(1, "wind_angle"),
			Reference:  r.str(2),
			WindSpeed:  r.float(3, "wind_speed"),
			SpeedUnits: r.str(4),
			Status:     r.str(5),
		}
	case KindRMC:
		out = RMC{
			header:          h,
			Time:            r.str(1),
			Status:          r.str(2),
			Lat:             r.float(3, "lat"),
			LatDir:          r.str(4),
			Lon:             r.float(5, "lon"),
			LonDir:          r.str(6),
			SpeedOverGround: r.float(7, "spd_over_grnd"),
			TrueCourse:      r.float(8, "true_course"),
			Date:            r.str(9),
			MagVariation:    r.float(10, "mag_variation"),
			MagVarDir:       r.str(11),
		}
	case KindROT:
		out = ROT{header: h, RateOfTurn: r.float(1, "rate_of_turn"), Status: r.str(2)}
	case KindVHW:
		out = VHW{
			header:          h,
			HeadingTrue:     r.float(1, "heading_true"),
			HeadingMagnetic: r.float(3, "heading_magnetic"),
			WaterSpeedKnots: r.float(5, "water_speed_knots"),
			WaterSpeedKmh:   r.float(7, "water_speed_km"),
		}
	case KindVLW:
		out = VLW{header: h, TripDistance: r.float(1, "trip_distance"), TripDistanceReset: r.float(3, "trip_distance_reset")}
	case KindVTG:
		out = VTG{
			header:     h,
			TrueTrack:  r.float(1, "true_track"),
			MagTrack:   r.float(3, "mag_track"),
			SpeedKnots: r.float(5, "spd_over_grnd_kts"),
			SpeedKmh:   r.float(7, "spd_over_grnd_kmph"),
		}
	case KindZDA:
		out = ZDA{
			header:           h,
			Time:             r.str(1),
			Day:              r.int(2, "day"),
			Month:            r.int(3, "month"),
			Year:             r.int(4, "year"),
			LocalZone:        r.int(5, "local_zone"),
			LocalZoneMinutes: r.int(6, "local_zone_minutes"),
		}
	default:
		return nil, ErrUnsupported
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}
