package dataaxle

// Filter is a provider query proposition. Filters compose with And and
// marshal directly into the request body.
type Filter map[string]any

// GeoPolygon matches records whose coordinates fall inside the ring.
// The ring is (lng, lat) pairs, closed; the provider expects
// [lat, lng] vertex order.
func GeoPolygon(ring [][2]float64) Filter {
	points := make([][2]float64, 0, len(ring))
	for _, pt := range ring {
		points = append(points, [2]float64{pt[1], pt[0]})
	}
	return Filter{
		"relation": "geo_polygon",
		"value":    points,
	}
}

// Equals matches records whose attribute equals value.
func Equals(attribute string, value any) Filter {
	return Filter{
		"relation":  "equals",
		"attribute": attribute,
		"value":     value,
	}
}

// In matches records whose attribute takes any of the given values.
func In(attribute string, values ...any) Filter {
	return Filter{
		"relation":  "in",
		"attribute": attribute,
		"value":     values,
	}
}

// And combines propositions conjunctively. A single proposition passes
// through unwrapped.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	props := make([]Filter, len(filters))
	copy(props, filters)
	return Filter{
		"connective":   "and",
		"propositions": props,
	}
}
