package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// TypeName returns the "_type" tag, "" when absent.
func (p Payload) TypeName() string {
	s, _ := p[TypeField].(string)
	return s
}

// ID returns the identifier as a canonical string, "" when absent or falsy.
func (p Payload) ID() string {
	return FormatID(p[IDField])
}

// Version returns the version field and whether it is present.
func (p Payload) Version() (int64, bool) {
	v, ok := p[VersionField]
	if !ok || v == nil {
		return 0, false
	}
	n, ok := toInt64(v)
	return n, ok
}

// Time parses an RFC 3339 timestamp field; the zero time when absent or malformed.
func (p Payload) Time(field string) time.Time {
	s, _ := p[field].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Object returns a nested object field.
func (p Payload) Object(field string) (Payload, bool) {
	switch v := p[field].(type) {
	case Payload:
		return v, true
	case map[string]any:
		return Payload(v), true
	}
	return nil, false
}

// AsPayload converts decoded JSON into a Payload when it is an object.
func AsPayload(v any) (Payload, bool) {
	switch o := v.(type) {
	case Payload:
		return o, true
	case map[string]any:
		return Payload(o), true
	}
	return nil, false
}

// FormatID canonicalizes identifiers coming from JSON: numbers and strings are
// accepted, zero values are treated as unset.
func FormatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		if id.String() == "0" {
			return ""
		}
		return id.String()
	case float64:
		if id == 0 {
			return ""
		}
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		if id == 0 {
			return ""
		}
		return strconv.Itoa(id)
	case int64:
		if id == 0 {
			return ""
		}
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprint(id)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
