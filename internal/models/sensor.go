package models

import "time"

// RetentionWindow is the trailing span of sensor history kept and graphed.
const RetentionWindow = 24 * time.Hour

// RetentionSeconds is RetentionWindow in log time units.
const RetentionSeconds = int64(RetentionWindow / time.Second)

// LogPoint is a single sensor sample.
type LogPoint struct {
	Time     int64   `json:"time"`     // unix seconds
	Interval int64   `json:"interval"` // sampling period in effect, seconds
	Value    float64 `json:"value"`
}

// SensorRecord is the cached state of one sensor. The sensor key lives
// outside the record and never changes; everything here may be updated.
type SensorRecord struct {
	HumanName    string     `json:"humanName"`
	Kind         string     `json:"type"`                   // temperature | humidity | ...
	DesiredValue *float64   `json:"desiredValue,omitempty"` // setpoint annotation
	Log          []LogPoint `json:"log"`                    // strictly increasing Time
}

// LastTime returns the timestamp of the newest point, or 0 for an empty log.
func (r *SensorRecord) LastTime() int64 {
	if r == nil || len(r.Log) == 0 {
		return 0
	}
	return r.Log[len(r.Log)-1].Time
}

// SameMeta reports whether both records carry the same display metadata.
func (r *SensorRecord) SameMeta(o *SensorRecord) bool {
	if r.HumanName != o.HumanName || r.Kind != o.Kind {
		return false
	}
	switch {
	case r.DesiredValue == nil && o.DesiredValue == nil:
		return true
	case r.DesiredValue == nil || o.DesiredValue == nil:
		return false
	default:
		return *r.DesiredValue == *o.DesiredValue
	}
}

// Clone returns a deep copy safe to hand out of the event loop.
func (r *SensorRecord) Clone() *SensorRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.DesiredValue != nil {
		v := *r.DesiredValue
		c.DesiredValue = &v
	}
	c.Log = append([]LogPoint(nil), r.Log...)
	return &c
}
