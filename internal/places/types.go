package places

import (
	"encoding/json"

	"github.com/woozymasta/nearmap/internal/geo"

	"github.com/rs/zerolog/log"
)

// Response is the subset of a nearby search reply this package consumes.
type Response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Results      []Result `json:"results"`
}

// Result is a single place entry. Pointers mark the parts that must
// be present for the entry to become a marker.
type Result struct {
	Geometry *Geometry `json:"geometry"`
	Name     string    `json:"name,omitempty"`
	PlaceID  string    `json:"place_id,omitempty"`
	Vicinity string    `json:"vicinity,omitempty"`
	Types    []string  `json:"types,omitempty"`
}

// UnmarshalJSON decodes a single entry. An entry that does not match
// the schema is left empty instead of failing the whole response, so
// the mapper skips it.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Msg("Skipping malformed place entry")
		*r = Result{}
		return nil
	}
	*r = Result(p)
	return nil
}

// Geometry carries the place position.
type Geometry struct {
	Location *Location `json:"location"`
}

// Location is a lat/lng pair as sent by the API.
type Location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Place is a result that passed validation and can be placed on the map.
type Place struct {
	Name       string
	PlaceID    string
	Vicinity   string
	Coordinate geo.Coordinate
}
