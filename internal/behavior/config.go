package behavior

import (
	"strings"
	"unicode"
)

// The per-entity config maps passed to RegisterEntity are untyped
// (map[string]any), the same shape the wire API uses for service call
// data. These helpers pull a typed value out with a default, the way every
// engine's get_initial_state did inline in the original implementation.

func ConfigBool(cfg map[string]any, key string, def bool) bool {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func ConfigString(cfg map[string]any, key, def string) string {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func ConfigFloat(cfg map[string]any, key string, def float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return def
	}
}

// FriendlyName derives a display name from config["name"], falling back
// to the entity id's name segment with underscores turned into spaces and
// each word capitalized.
func FriendlyName(entityID string, cfg map[string]any) string {
	if name := ConfigString(cfg, "name", ""); name != "" {
		return name
	}
	idx := strings.IndexByte(entityID, '.')
	name := entityID
	if idx >= 0 {
		name = entityID[idx+1:]
	}
	name = strings.ReplaceAll(name, "_", " ")
	return titleCase(name)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt restricts v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
