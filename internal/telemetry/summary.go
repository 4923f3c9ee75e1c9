package telemetry

import "time"

// Summary is one hourly_navigation_summary row. Nil fields are NULL; an
// all-nil row marks an hour without data.
type Summary struct {
	ID   int64     `json:"id,omitempty"`
	Hour time.Time `json:"hour"`

	TWA     *float64 `json:"twa"`
	TWS     *float64 `json:"tws"`
	AWA     *float64 `json:"awa"`
	AWS     *float64 `json:"aws"`
	Heading *float64 `json:"heading"`
	Speed   *float64 `json:"speed"`

	Altitude  *float64 `json:"altitude"`
	Latitude  *float64 `json:"latitude"`
	LatDir    *string  `json:"lat_dir"`
	Longitude *float64 `json:"longitude"`
	LonDir    *string  `json:"lon_dir"`
	Depth     *float64 `json:"depth"`
	Temp      *float64 `json:"temp"`
}

// Empty reports whether no field of the summary carries data.
func (s Summary) Empty() bool {
	for _, p := range []*float64{s.TWA, s.TWS, s.AWA, s.AWS, s.Heading, s.Speed, s.Altitude, s.Latitude, s.Longitude, s.Depth, s.Temp} {
		if p != nil {
			return false
		}
	}
	return s.LatDir == nil && s.LonDir == nil
}
