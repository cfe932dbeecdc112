package models

import "reflect"

// Attributes is the attribute mapping of one actuator. Values are float64,
// bool or string as decoded from JSON.
type Attributes map[string]any

// Clone returns a shallow copy; attribute values are scalars.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// ActuatorState maps actuator names to their attributes.
type ActuatorState map[string]Attributes

// Clone deep-copies the state.
func (s ActuatorState) Clone() ActuatorState {
	c := make(ActuatorState, len(s))
	for k, v := range s {
		c[k] = v.Clone()
	}
	return c
}

// SameValue compares two attribute values. Numbers decoded from JSON are
// float64, so int inputs are widened before comparing.
func SameValue(a, b any) bool {
	if fa, ok := AsFloat(a); ok {
		if fb, ok := AsFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// AsFloat widens any numeric attribute value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
