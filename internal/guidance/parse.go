package guidance

import "encoding/json"

// ParseLights normalizes a raw light param value into a slice of lights.
// Accepted shapes: a single object, a list of objects, or nil. Anything
// unrecognized yields no lights rather than an error; guidance is advisory.
func ParseLights(v any) []Light {
	switch t := v.(type) {
	case nil:
		return nil
	case Light:
		return []Light{t}
	case *Light:
		if t == nil {
			return nil
		}
		return []Light{*t}
	case []Light:
		return t
	case map[string]any:
		if l, ok := lightFromMap(t); ok {
			return []Light{l}
		}
		return nil
	case []any:
		var out []Light
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if l, ok := lightFromMap(m); ok {
				out = append(out, l)
			}
		}
		return out
	default:
		return nil
	}
}

func lightFromMap(m map[string]any) (Light, bool) {
	az, okAz := toFloat(m["azimuth"])
	el, okEl := toFloat(m["elevation"])
	if !okAz && !okEl {
		return Light{}, false
	}
	return Light{Azimuth: az, Elevation: el}, true
}

// ParseCamera normalizes a raw camera param value. The second return is
// false when the value carries no usable camera data.
func ParseCamera(v any) (Camera, bool) {
	switch t := v.(type) {
	case nil:
		return Camera{}, false
	case Camera:
		return t, true
	case *Camera:
		if t == nil {
			return Camera{}, false
		}
		return *t, true
	case map[string]any:
		cam := Camera{}
		found := false
		if d, ok := t["distance"].(string); ok {
			cam.Distance = d
			found = true
		}
		if h, ok := toFloat(t["height"]); ok {
			cam.Height = clamp(h, -1, 1)
			found = true
		}
		return cam, found
	default:
		return Camera{}, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
