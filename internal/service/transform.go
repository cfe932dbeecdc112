package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"domo/internal/config"
	"domo/internal/models"
)

// TransformKind maps between an input widget value and the stored
// attribute value.
type TransformKind string

const (
	Identity          TransformKind = "identity"
	Logarithmic       TransformKind = "logarithmic"        // widget = ln(stored)
	Minutes           TransformKind = "minutes"            // widget = stored / 60
	HoursOfLocalDay   TransformKind = "hours-of-local-day" // widget = local hour of stored time of day
	MinutesOfLocalDay TransformKind = "minutes-of-local-day"
)

const secondsPerDay = 24 * 60 * 60

var (
	errUnknownTransform = errors.New("unknown transform")
	errNotNumeric       = errors.New("value must be numeric")
)

// IsValueError reports whether err rejected an edited widget value.
func IsValueError(err error) bool {
	return errors.Is(err, errNotNumeric)
}

// ParseTransformKind validates a descriptor table entry. Empty means identity.
func ParseTransformKind(s string) (TransformKind, error) {
	switch k := TransformKind(s); k {
	case "":
		return Identity, nil
	case Identity, Logarithmic, Minutes, HoursOfLocalDay, MinutesOfLocalDay:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownTransform, s)
	}
}

// TransformTable is the actuator attribute descriptor table.
type TransformTable map[string]map[string]TransformKind

// NewTransformTable builds the table from configuration rows.
func NewTransformTable(rows []config.ActuatorAttribute) (TransformTable, error) {
	t := make(TransformTable)
	for _, row := range rows {
		kind, err := ParseTransformKind(row.Transform)
		if err != nil {
			return nil, fmt.Errorf("actuator %s.%s: %w", row.Actuator, row.Attribute, err)
		}
		if t[row.Actuator] == nil {
			t[row.Actuator] = make(map[string]TransformKind)
		}
		t[row.Actuator][row.Attribute] = kind
	}
	return t, nil
}

// Kind returns the transform for one attribute; undeclared ones are identity.
func (t TransformTable) Kind(actuator, attribute string) TransformKind {
	if k, ok := t[actuator][attribute]; ok {
		return k
	}
	return Identity
}

// dayBase is the start of now's UTC day; time-of-day attributes are stored
// as seconds past it.
func dayBase(now time.Time) int64 {
	return now.Unix() / secondsPerDay * secondsPerDay
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// ToStored converts a widget value into the value kept in the attribute
// mapping. current is the stored value before the edit; time-of-day kinds
// change only one clock field of it.
func ToStored(kind TransformKind, raw, current any, now time.Time, loc *time.Location) (any, error) {
	if kind == Identity {
		return raw, nil
	}
	v, ok := models.AsFloat(raw)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %T", kind, errNotNumeric, raw)
	}

	switch kind {
	case Logarithmic:
		return math.Exp(v), nil
	case Minutes:
		return v * 60, nil
	case HoursOfLocalDay, MinutesOfLocalDay:
		stored, _ := models.AsFloat(current)
		t := time.Unix(dayBase(now)+int64(stored), 0).In(loc)
		hour, minute := t.Hour(), t.Minute()
		if kind == HoursOfLocalDay {
			hour = int(v)
		} else {
			minute = int(v)
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, t.Second(), 0, loc)
		return float64(floorMod(t.Unix(), secondsPerDay)), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownTransform, kind)
	}
}

// ToDisplay is the inverse of ToStored.
func ToDisplay(kind TransformKind, stored any, now time.Time, loc *time.Location) any {
	if kind == Identity {
		return stored
	}
	v, ok := models.AsFloat(stored)
	if !ok {
		return stored
	}
	switch kind {
	case Logarithmic:
		return math.Log(v)
	case Minutes:
		return v / 60
	case HoursOfLocalDay:
		return time.Unix(dayBase(now)+int64(v), 0).In(loc).Hour()
	case MinutesOfLocalDay:
		return time.Unix(dayBase(now)+int64(v), 0).In(loc).Minute()
	default:
		return stored
	}
}
