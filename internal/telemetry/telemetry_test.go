package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logbook/internal/nmea"
)

func parse(t *testing.T, payload string) nmea.Fields {
	t.Helper()
	f, err := nmea.Parse(fmt.Sprintf("$%s*%02X", payload, nmea.Checksum(payload)))
	require.NoError(t, err)
	return f
}

func TestTrueWind_KnownVector(t *testing.T) {
	tws, twa := TrueWind(10, 45, 5)
	assert.Equal(t, 7.37, tws)
	assert.Equal(t, 73.68, twa)
}

func TestTrueWind_Table(t *testing.T) {
	cases := []struct {
		aws, awa, vs float64
		tws, twa     float64
	}{
		{10, 180, 5, 15, 180},
		{5, 0, 5, 0, 0},
		{10, 270, 3, 10.44, 253.3},
		{0, 0, 0, 0, 0},
		{12.5, 315, 6.2, 9.22, 286.62},
		{10, 90, 0, 10, 90},
	}
	for _, tc := range cases {
		tws, twa := TrueWind(tc.aws, tc.awa, tc.vs)
		assert.Equal(t, tc.tws, tws, "tws for %+v", tc)
		assert.Equal(t, tc.twa, twa, "twa for %+v", tc)
	}
}

func TestTrueWind_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		aws := rng.Float64() * 60
		awa := rng.Float64() * 360
		vs := rng.Float64() * 25
		tws, twa := TrueWind(aws, awa, vs)
		require.GreaterOrEqual(t, tws, 0.0)
		require.GreaterOrEqual(t, twa, 0.0)
		require.Less(t, twa, 360.0, "aws=%v awa=%v vs=%v", aws, awa, vs)
	}
}

func TestEnrichTrueWind_MissingInput(t *testing.T) {
	v := Values{AWA: Number(45), Speed: Number(5)}
	err := EnrichTrueWind(v)

	var mi *MissingInputError
	require.True(t, errors.As(err, &mi))
	assert.Equal(t, []Field{AWS}, mi.Missing)
	assert.NotContains(t, v, TWS)
	assert.NotContains(t, v, TWA)
}

func TestEnrichTrueWind_TextSpeedIsMissing(t *testing.T) {
	v := Values{AWA: Number(45), AWS: Number(10), Speed: Text("x")}
	var mi *MissingInputError
	require.ErrorAs(t, EnrichTrueWind(v), &mi)
	assert.Equal(t, []Field{Speed}, mi.Missing)
}

func TestEnrichTrueWind_Merges(t *testing.T) {
	v := Values{AWA: Number(45), AWS: Number(10), Speed: Number(5)}
	require.NoError(t, EnrichTrueWind(v))
	tws, _ := v.Float(TWS)
	twa, _ := v.Float(TWA)
	assert.Equal(t, 7.37, tws)
	assert.Equal(t, 73.68, twa)
}

func TestSnapshot_OverwriteLaw(t *testing.T) {
	s := NewSnapshot()
	s.Update(parse(t, "GPVHW,10.0,T,12.0,M,6.0,N,11.1,K"))
	s.Update(parse(t, "GPVHW,,T,14.0,M,6.5,N,12.0,K"))

	th, _ := s.Get(TrueHeading)
	hm, _ := s.Get(HeadingMagnetic)
	ws, _ := s.Get(WaterSpeed)
	assert.Equal(t, Number(10), th, "not re-sent: keeps first value")
	assert.Equal(t, Number(14), hm)
	assert.Equal(t, Number(6.5), ws)
}

func TestSnapshot_ZeroReadingsKept(t *testing.T) {
	s := NewSnapshot()
	n := s.Update(parse(t, "GPDPT,0.0,0.0"))
	assert.Equal(t, 1, n)
	v, ok := s.Get(Depth)
	require.True(t, ok)
	assert.Equal(t, Number(0), v)
}

func TestSnapshot_ExtractionTable(t *testing.T) {
	s := NewSnapshot()
	for _, p := range []string{
		"GPDPT,4.2,0.5",
		"GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
		"GPHDG,98.3,,,2.1,E",
		"GPHDT,97.0,T",
		"GPMTW,17.5,C",
		"GPMWV,45.0,R,10.0,N,A",
		"GPRMC,123519,A,4807.038,N,01131.000,E,5.0,084.4,230394,003.1,W",
		"GPROT,-2.5,A",
		"GPVHW,100.0,T,98.0,M,6.0,N,11.1,K",
		"GPVLW,1234.5,N,12.3,N",
		"GPVTG,054.7,T,034.4,M,005.5,N,010.2,K",
		"GPZDA,201530.00,04,07,2002,-05,00",
	} {
		s.Update(parse(t, p))
	}

	want := Values{
		Depth: Number(4.2),
		Lat:   Number(4807.038), LatDir: Text("N"), Lon: Number(1131), LonDir: Text("E"),
		NumSats: Number(8), HorizontalDil: Number(0.9), Altitude: Number(545.4), GeoSep: Number(46.9),
		Heading:     Number(98.3),
		Temperature: Number(17.5),
		AWA:         Number(45), AWS: Number(10),
		Speed: Number(5), TrueCourse: Number(84.4), MagVar: Number(3.1), MagVarDir: Text("W"),
		RateOfTurn:  Number(-2.5),
		TrueHeading: Number(100), HeadingMagnetic: Number(98), WaterSpeed: Number(6),
		TripDistance: Number(1234.5),
		TrueTrack:    Number(54.7), MagTrack: Number(34.4),
		LocalZone: Number(-5),
	}
	assert.Equal(t, want, s.TakeAndReset())
}

func TestSnapshot_TakeAndReset(t *testing.T) {
	s := NewSnapshot()
	s.Update(parse(t, "GPMWV,45.0,R,10.0,N,A"))
	got := s.TakeAndReset()
	assert.Len(t, got, 2)
	assert.Equal(t, 0, s.Len())

	s.Update(parse(t, "GPDPT,3.0,"))
	assert.Equal(t, 1, s.Len())
	assert.Len(t, got, 2, "taken values must not alias the live snapshot")
}

func TestValues_Present(t *testing.T) {
	v := Values{TWS: Number(1), RateOfTurn: Number(2), LatDir: Text("S")}
	assert.Equal(t, []Field{RateOfTurn, LatDir, TWS}, v.Present())
}

func TestValue_JSON(t *testing.T) {
	b, err := json.Marshal(Values{AWA: Number(45.5), LatDir: Text("N")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"AWA":45.5,"lat_dir":"N"}`, string(b))

	var back Values
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Text("N"), back[LatDir])
	assert.Equal(t, Number(45.5), back[AWA])
}
