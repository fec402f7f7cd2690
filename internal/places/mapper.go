package places

import "github.com/woozymasta/nearmap/internal/geo"

// Places extracts placeable entries from a response in their original order.
// Entries without geometry.location.lat/lng, or with coordinates outside
// WGS84 bounds, are skipped. Duplicates are kept.
func Places(resp *Response) []Place {
	if resp == nil || len(resp.Results) == 0 {
		return nil
	}

	out := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		c, ok := r.coordinate()
		if !ok {
			continue
		}
		out = append(out, Place{
			Name:       r.Name,
			PlaceID:    r.PlaceID,
			Vicinity:   r.Vicinity,
			Coordinate: c,
		})
	}

	return out
}

// Points is Places reduced to coordinates.
func Points(resp *Response) []geo.Coordinate {
	places := Places(resp)
	if len(places) == 0 {
		return nil
	}

	pts := make([]geo.Coordinate, len(places))
	for i, p := range places {
		pts[i] = p.Coordinate
	}
	return pts
}

func (r Result) coordinate() (geo.Coordinate, bool) {
	if r.Geometry == nil || r.Geometry.Location == nil {
		return geo.Coordinate{}, false
	}
	loc := r.Geometry.Location
	if loc.Lat == nil || loc.Lng == nil {
		return geo.Coordinate{}, false
	}

	c := geo.Coordinate{Lat: *loc.Lat, Lng: *loc.Lng}
	return c, c.Valid()
}
