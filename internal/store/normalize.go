package store

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// system fields callers are not allowed to set or change
var systemFields = map[string]bool{
	"id":       true,
	"_id":      true,
	"created":  true,
	"updated":  true,
	"parentId": true,
}

// stripSystem drops fields callers are not allowed to set.
func stripSystem(record Doc) Doc {
	out := Doc{}
	for key, value := range record {
		if systemFields[key] {
			continue
		}
		out[key] = value
	}
	return out
}

// coerceDoc converts wire values to store-native ones: ISO date strings
// become time.Time, {lat,lng} maps become GeoJSON points.
func coerceDoc(record Doc) Doc {
	out := Doc{}
	for key, value := range record {
		out[key] = coerceValue(value)
	}
	return out
}

// sanitize prepares caller-supplied data for a write.
func sanitize(record Doc) Doc {
	return coerceDoc(stripSystem(record))
}

func coerceValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if isoDatePattern.MatchString(v) {
			if t, err := parseWireTime(v); err == nil {
				return t
			}
		}
		return v
	case map[string]interface{}:
		if pt, ok := geoFromWire(v); ok {
			return pt
		}
		out := map[string]interface{}{}
		for k, inner := range v {
			out[k] = coerceValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = coerceValue(inner)
		}
		return out
	default:
		return value
	}
}

func parseWireTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func geoFromWire(m map[string]interface{}) (map[string]interface{}, bool) {
	if len(m) != 2 {
		return nil, false
	}
	lat, latOK := toFloat(m["lat"])
	lng, lngOK := toFloat(m["lng"])
	if !latOK || !lngOK {
		return nil, false
	}
	return map[string]interface{}{
		"type":        "Point",
		"coordinates": []interface{}{lng, lat},
	}, true
}

func geoToWire(m map[string]interface{}) (map[string]interface{}, bool) {
	if t, _ := m["type"].(string); t != "Point" {
		return nil, false
	}
	coords, ok := m["coordinates"].([]interface{})
	if !ok || len(coords) != 2 {
		return nil, false
	}
	lng, lngOK := toFloat(coords[0])
	lat, latOK := toFloat(coords[1])
	if !latOK || !lngOK {
		return nil, false
	}
	return map[string]interface{}{"lat": lat, "lng": lng}, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// normalizeDoc converts a raw store document to its wire shape: the _id
// becomes id, datetimes become time.Time (RFC3339 after JSON encoding),
// geo points flatten to {lat,lng}, and hidden-prefix fields are elided
// unless showPrivate.
func normalizeDoc(raw Doc, hiddenPrefix string, showPrivate bool) Doc {
	out := Doc{}
	for field, value := range raw {
		name := field
		if field == "_id" {
			name = "id"
		} else if field == "parentId" {
			continue
		} else if hiddenPrefix != "" && strings.HasPrefix(field, hiddenPrefix) && !showPrivate {
			continue
		}
		out[name] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC()
	case time.Time:
		return v.UTC()
	case primitive.ObjectID:
		return v.Hex()
	case primitive.M:
		return normalizeMap(v)
	case map[string]interface{}:
		return normalizeMap(v)
	case primitive.A:
		return normalizeSlice(v)
	case []interface{}:
		return normalizeSlice(v)
	default:
		return value
	}
}

func normalizeMap(m map[string]interface{}) interface{} {
	if wire, ok := geoToWire(m); ok {
		return wire
	}
	out := map[string]interface{}{}
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}
