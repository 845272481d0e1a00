package aq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gothamair/airpulse/internal/common"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is inside the usual lat/lon ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String renders the coordinate the way the upstream API expects it ("lat,lon").
func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// Pollutant describes one of the pollutant layers we can query, together with
// the advisory thresholds and clinical context shown on the dashboard.
type Pollutant struct {
	Key           string `json:"key"`
	ParameterID   int    `json:"parameterId"`
	Label         string `json:"label"`
	Unit          string `json:"unit"`
	ClinicalTitle string `json:"clinicalTitle"`
	ClinicalText  string `json:"clinicalText"`

	// Advisory thresholds on the area average: below cautionAt is fine,
	// below hazardAt warrants caution, anything above is a hazard.
	cautionAt float64
	hazardAt  float64
}

var (
	// PM25 is fine particulate matter, OpenAQ parameter id 2.
	PM25 = Pollutant{
		Key:           "pm25",
		ParameterID:   2,
		Label:         "PM2.5 (fine particulate matter)",
		Unit:          "µg/m³",
		ClinicalTitle: "Why PM2.5 matters for commuters",
		ClinicalText: "PM2.5 particles are small enough to penetrate deep into the lungs. " +
			"Deep breathing during biking or running increases exposure significantly. " +
			"High levels trigger inflammation, asthma attacks, and cardiovascular stress.",
		cautionAt: 12,
		hazardAt:  35.4,
	}

	// O3 is ground-level ozone, OpenAQ parameter id 7.
	O3 = Pollutant{
		Key:           "o3",
		ParameterID:   7,
		Label:         "O₃ (ozone)",
		Unit:          "µg/m³",
		ClinicalTitle: "Why ozone matters for commuters",
		ClinicalText: "Ozone is a lung irritant often highest on hot, sunny afternoons. " +
			"It causes coughing, throat irritation, and reduced lung capacity. " +
			"Levels usually drop in the early morning and late evening.",
		cautionAt: 54,
		hazardAt:  70,
	}
)

// Pollutants returns the supported pollutant layers in display order.
func Pollutants() []Pollutant {
	return []Pollutant{PM25, O3}
}

// ParsePollutant resolves a user-supplied pollutant name to a registry entry.
// Common aliases ("pm2.5", "ozone") are accepted.
func ParsePollutant(s string) (Pollutant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch {
	case common.HasAny(key, "pm25", "pm2.5", "pm2_5"):
		return PM25, nil
	case common.HasAny(key, "o3", "ozone"):
		return O3, nil
	}
	return Pollutant{}, fmt.Errorf("unknown pollutant %q", s)
}

// SearchRequest describes one pipeline run: where to look and for what.
type SearchRequest struct {
	Center    Coordinate `json:"center"`
	RadiusKM  int        `json:"radiusKm"`
	Pollutant Pollutant  `json:"pollutant"`
}

// Validate checks the request preconditions before any network call is made.
func (r SearchRequest) Validate() error {
	if !r.Center.Valid() {
		return fmt.Errorf("center %s is out of range", r.Center)
	}
	if r.RadiusKM <= 0 {
		return fmt.Errorf("radius must be positive, got %d", r.RadiusKM)
	}
	if r.Pollutant.ParameterID == 0 {
		return fmt.Errorf("pollutant is not set")
	}
	return nil
}

// RadiusMeters converts the search radius to the unit the upstream API uses.
func (r SearchRequest) RadiusMeters() int {
	return r.RadiusKM * 1000
}

// LocationCandidate is a sensor location returned by discovery. Candidates are
// immutable once fetched; the coordinate may be absent in upstream data.
type LocationCandidate struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Coordinate *Coordinate `json:"coordinates,omitempty"`
}

// LatestMeasurement is the raw latest reading for a single location as
// reported upstream, before coordinate fallback is applied.
type LatestMeasurement struct {
	Value           *float64
	ObservedAtLocal string
	ObservedAtUTC   string
	Coordinate      *Coordinate
}

// Reading is one normalized row of the result table. After the pipeline's
// post-filter every retained Reading has a non-nil, valid coordinate.
type Reading struct {
	LocationID   int         `json:"locationId"`
	LocationName string      `json:"location"`
	Value        *float64    `json:"value"`
	Unit         string      `json:"unit"`
	ObservedAt   string      `json:"observedAt,omitempty"`
	Coordinate   *Coordinate `json:"coordinates"`
}

// ResultSet is the output of one pipeline run: readings in discovery order,
// the upstream discovery metadata passed through opaquely, and the number of
// candidates dropped by the fail-soft enrichment stage.
type ResultSet struct {
	Readings []Reading       `json:"readings"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	Skipped  int             `json:"skipped"`
}

// ParameterRow is one row of the parameter-wide latest report
// (/v3/parameters/{id}/latest).
type ParameterRow struct {
	LocationsID   int      `json:"locationsId"`
	Value         *float64 `json:"value"`
	ObservedAtUTC string   `json:"observedAtUtc,omitempty"`
}
