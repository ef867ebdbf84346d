package syncx

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"
)

// Created contains the parsed server acknowledgement of a create call
type Created struct {
	ServerID    string
	UpdatedAtMs int64 // 0 when the server did not report a timestamp
}

// GetString safely extracts a string value from a map
func GetString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// GetMap safely extracts a nested map from a map
func GetMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
	}
	return nil, false
}

// GetID extracts an identifier that may be encoded as a JSON string or number.
// Integral numbers are rendered without a fractional part ("99", not "99.000000").
func GetID(m map[string]any, k string) (string, bool) {
	v, ok := m[k]
	if !ok || v == nil {
		return "", false
	}

	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number:
		return id.String(), id.String() != ""
	case float64:
		if id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			return strconv.FormatInt(int64(id), 10), true
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return "", false
	}
}

// ParseTimeToMs converts various time formats to Unix milliseconds
// Accepts: RFC3339, numeric milliseconds (as string), empty (returns 0)
func ParseTimeToMs(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().UnixMilli(), true
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}

	return 0, false
}

// ExtractCreated parses the body returned by a remote create call.
// Tolerant of envelopes ({"data": {...}}, {"item": {...}}) and of id field naming
// (id, uid, serverId).
func ExtractCreated(body map[string]any) (Created, error) {
	var out Created

	src := body
	for _, envelope := range []string{"data", "item"} {
		if inner, ok := GetMap(body, envelope); ok {
			src = inner
			break
		}
	}

	for _, k := range []string{"id", "uid", "serverId"} {
		if id, ok := GetID(src, k); ok {
			out.ServerID = id
			break
		}
	}
	if out.ServerID == "" {
		return out, errors.New("missing id in create response")
	}

	for _, k := range []string{"updatedAt", "updatedTs"} {
		if s, ok := GetString(src, k); ok {
			if ms, ok2 := ParseTimeToMs(s); ok2 {
				out.UpdatedAtMs = ms
				break
			}
		}
		if n, ok := src[k].(json.Number); ok {
			if ms, err := n.Int64(); err == nil {
				out.UpdatedAtMs = ms
				break
			}
		}
	}

	return out, nil
}
