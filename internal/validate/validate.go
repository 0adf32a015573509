// Package validate coerces raw option-bag values (form strings, JSON numbers,
// MCP arguments) into canonical filter values. Every check is pure and stops
// at the first invalid value.
package validate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted date input format.
const DateLayout = "2006-01-02"

const (
	MinPageSize = 10
	MaxPageSize = 100
	MinPage     = 1
	MaxPage     = 10000

	MinYear = 1900
	MaxYear = 2100
)

var boroughs = []string{"Manhattan", "Brooklyn", "Queens", "Bronx", "Staten Island"}

// Boroughs returns the fixed borough enumeration.
func Boroughs() []string {
	out := make([]string, len(boroughs))
	copy(out, boroughs)
	return out
}

// String trims v; an empty result collapses to def.
func String(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

// RequiredString trims v and rejects an empty result.
func RequiredString(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", newError(field, ErrInvalidString, "must be a non-empty string")
	}
	return v, nil
}

// Borough matches v case-insensitively against the borough enumeration and
// returns the canonical spelling. Empty input means "no borough filter".
func Borough(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	for _, b := range boroughs {
		if strings.EqualFold(b, v) {
			return b, nil
		}
	}
	return "", newError(field, ErrInvalidBorough, "%q is not one of %s", v, strings.Join(boroughs, ", "))
}

// NumberOption adds a bound check to Number.
type NumberOption func(*numberBounds)

type numberBounds struct {
	min, max       float64
	hasMin, hasMax bool
}

// AtLeast rejects values below min with ErrOutOfRange.
func AtLeast(min float64) NumberOption {
	return func(b *numberBounds) { b.min, b.hasMin = min, true }
}

// AtMost rejects values above max with ErrOutOfRange.
func AtMost(max float64) NumberOption {
	return func(b *numberBounds) { b.max, b.hasMax = max, true }
}

// Number coerces raw (float, int, json.Number or numeric string) to a finite
// float64. ok is false when raw is absent (nil or blank string).
func Number(field string, raw any, opts ...NumberOption) (val float64, ok bool, err error) {
	switch v := raw.(type) {
	case nil:
		return 0, false, nil
	case float64:
		val = v
	case float32:
		val = float64(v)
	case int:
		val = float64(v)
	case int32:
		val = float64(v)
	case int64:
		val = float64(v)
	case json.Number:
		val, err = strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false, newError(field, ErrInvalidNumber, "%q is not a number", v.String())
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		val, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, newError(field, ErrInvalidNumber, "%q is not a number", v)
		}
	default:
		return 0, false, newError(field, ErrInvalidNumber, "expected a number, got %T", raw)
	}

	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false, newError(field, ErrInvalidNumber, "must be a finite number")
	}

	var b numberBounds
	for _, o := range opts {
		o(&b)
	}
	if b.hasMin && val < b.min {
		return 0, false, newError(field, ErrOutOfRange, "%v is below the minimum %v", val, b.min)
	}
	if b.hasMax && val > b.max {
		return 0, false, newError(field, ErrOutOfRange, "%v is above the maximum %v", val, b.max)
	}
	return val, true, nil
}

// OptionalNumber is Number returning nil for an absent value.
func OptionalNumber(field string, raw any, opts ...NumberOption) (*float64, error) {
	v, ok, err := Number(field, raw, opts...)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// NumberOr is Number with a default for an absent value.
func NumberOr(field string, raw any, def float64, opts ...NumberOption) (float64, error) {
	v, ok, err := Number(field, raw, opts...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Year accepts a whole number within [MinYear, MaxYear]. Absent input yields nil.
func Year(field string, raw any) (*int, error) {
	v, ok, err := Number(field, raw)
	if err != nil || !ok {
		return nil, err
	}
	if v != math.Trunc(v) {
		return nil, newError(field, ErrInvalidNumber, "year %v is not a whole number", v)
	}
	if v < MinYear || v > MaxYear {
		return nil, newError(field, ErrOutOfRange, "year %v is outside %d-%d", v, MinYear, MaxYear)
	}
	y := int(v)
	return &y, nil
}

// Date parses a YYYY-MM-DD value. Blank input yields def.
func Date(field, v string, def time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	if len(v) != len(DateLayout) {
		return time.Time{}, newError(field, ErrInvalidDateFormat, "%q is not in YYYY-MM-DD format", v)
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, newError(field, ErrInvalidDateFormat, "%q is not in YYYY-MM-DD format", v)
	}
	return t, nil
}

// Bool accepts a bool or the usual form encodings ("true", "on", "1", ...).
// Absent input yields def.
func Bool(field string, raw any, def bool) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "":
			return def, nil
		case "on", "yes":
			return true, nil
		case "off", "no":
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, newError(field, ErrInvalidBool, "%q is not a boolean", v)
		}
		return b, nil
	default:
		return false, newError(field, ErrInvalidBool, "expected a boolean, got %T", raw)
	}
}

// PageSize coerces raw and clamps it to [MinPageSize, MaxPageSize].
// Absent input yields MinPageSize. Clamping happens in float space so huge
// inputs cannot overflow int.
func PageSize(field string, raw any) (int, error) {
	v, err := NumberOr(field, raw, MinPageSize)
	if err != nil {
		return 0, err
	}
	v = math.Max(MinPageSize, math.Min(MaxPageSize, v))
	return int(v), nil
}

// Page coerces raw and clamps it to [MinPage, MaxPage]. Absent input yields 1.
func Page(field string, raw any) (int, error) {
	v, err := NumberOr(field, raw, MinPage)
	if err != nil {
		return 0, err
	}
	v = math.Max(MinPage, math.Min(MaxPage, v))
	return int(v), nil
}
