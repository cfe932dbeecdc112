// Package graph computes the geometry of a sensor's 24h time-series graph:
// axis ranges, gridlines with labels, and the curve split into connected
// and dotted runs. It does no I/O; rendering is done by the caller.
package graph

import (
	"errors"
	"fmt"
	"math"
	"time"

	"domo/internal/models"
)

const (
	// DefaultInterval is used for the time axis when the log is empty.
	DefaultInterval = 60

	hourStep        = 60 * 60
	boldHourEvery   = 3
	labelEdgeMargin = 0.7 // hour labels only right of timeStart + margin*hourStep

	minValueSpan    = 10
	valueLabelEvery = 5
	valueMargin     = 1
	fallbackMin     = 20
	fallbackMax     = 50

	// maxValueTicks bounds the integer gridlines of one graph.
	maxValueTicks = 1000
	// maxExactValue is the magnitude above which float64 steps of one
	// unit are no longer exact.
	maxExactValue = 1 << 53
)

var (
	ErrDegenerateRange = errors.New("graph: value range is empty after normalization")
	ErrInvalidViewport = errors.New("graph: viewport must have positive size")
	ErrRangeTooWide    = errors.New("graph: value range too wide for unit gridlines")
)

// Style is how a run of the curve is stroked.
type Style int

const (
	Connected Style = iota + 1
	Dotted
)

// MarshalText encodes the style by name.
func (s Style) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s Style) String() string {
	switch s {
	case Connected:
		return "connected"
	case Dotted:
		return "dotted"
	default:
		return "unknown"
	}
}

// Input is everything a layout depends on.
type Input struct {
	Key              string // sensor key, used as title when Name is empty
	Name             string
	Unit             string
	Log              []models.LogPoint
	Desired          *float64
	Width, Height    float64
	DevicePixelRatio float64 // 0 means 1
	Now              time.Time
	Location         *time.Location // nil means time.Local
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is one path primitive. Every segment after the first starts at
// the last point of the previous one so the curve stays contiguous.
type Segment struct {
	Style  Style   `json:"style"`
	Points []Point `json:"points"`
}

// XTick is an hourly gridline on the time axis.
type XTick struct {
	Time   int64   `json:"time"`
	X      float64 `json:"x"`
	Bold   bool    `json:"bold"`
	Label  string  `json:"label,omitempty"` // local hour, empty when not labelled
	LabelX float64 `json:"label_x,omitempty"`
}

// YTick is an integer gridline on the value axis.
type YTick struct {
	Value  float64 `json:"value"`
	Y      float64 `json:"y"`
	Bold   bool    `json:"bold"`
	Label  string  `json:"label,omitempty"`
	LabelY float64 `json:"label_y,omitempty"`
}

type Layout struct {
	Title       string    `json:"title"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	TimeStart   float64   `json:"time_start"`
	TimeEnd     float64   `json:"time_end"`
	ValueMin    float64   `json:"value_min"`
	ValueMax    float64   `json:"value_max"`
	StrokeWidth float64   `json:"stroke_width"` // gridline stroke in CSS pixels
	XLabelY     float64   `json:"x_label_y"`    // baseline of hour labels
	XTicks      []XTick   `json:"x_ticks"`
	YTicks      []YTick   `json:"y_ticks"`
	Segments    []Segment `json:"segments"`
}

// TimeWindow returns the graphed [start, end] span in unix seconds. The end
// is aligned to the middle of the newest sampling interval.
func TimeWindow(log []models.LogPoint, now time.Time) (start, end float64) {
	interval := int64(DefaultInterval)
	if n := len(log); n > 0 && log[n-1].Interval > 0 {
		interval = log[n-1].Interval
	}
	end = float64(now.Unix()/interval*interval) + float64(interval)/2
	return end - float64(models.RetentionSeconds), end
}

// ValueRange returns the value axis bounds for log: data range plus a one
// unit margin, widened to show desired, then grown symmetrically to at
// least minValueSpan. An empty log gets a fixed default range.
func ValueRange(log []models.LogPoint, desired *float64) (lo, hi float64, err error) {
	if len(log) == 0 {
		return fallbackMin, fallbackMax, nil
	}

	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range log {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	lo -= valueMargin
	hi += valueMargin

	if desired != nil {
		d := *desired
		if lo >= d {
			lo = d - valueMargin
		} else if hi <= d {
			hi = d + valueMargin
		}
	}

	if span := hi - lo; span < minValueSpan {
		grow := (minValueSpan - span) / 2
		lo -= grow
		hi += grow
	}

	if !(lo < hi) {
		return lo, hi, fmt.Errorf("%w: min=%v max=%v", ErrDegenerateRange, lo, hi)
	}
	return lo, hi, nil
}

// Classify returns the stroke style between two consecutive samples: a
// gap no larger than the longer of their sampling intervals is connected.
func Classify(prev, cur models.LogPoint) Style {
	gap := cur.Time - prev.Time
	if gap < 0 {
		gap = -gap
	}
	if gap <= max(prev.Interval, cur.Interval) {
		return Connected
	}
	return Dotted
}

// Compute lays out the graph for in.
func Compute(in Input) (*Layout, error) {
	if !(in.Width > 0) || !(in.Height > 0) {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidViewport, in.Width, in.Height)
	}
	dpr := in.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}

	timeStart, timeEnd := TimeWindow(in.Log, in.Now)
	valueMin, valueMax, err := ValueRange(in.Log, in.Desired)
	if err != nil {
		return nil, err
	}
	if err := checkTickable(valueMin, valueMax); err != nil {
		return nil, err
	}

	p := projection{
		timeStart: timeStart, timeSpan: timeEnd - timeStart,
		valueMax: valueMax, valueSpan: valueMax - valueMin,
		width: in.Width, height: in.Height, dpr: dpr,
	}

	l := &Layout{
		Title:       title(in),
		Width:       in.Width,
		Height:      in.Height,
		TimeStart:   timeStart,
		TimeEnd:     timeEnd,
		ValueMin:    valueMin,
		ValueMax:    valueMax,
		StrokeWidth: math.Max(1, math.Floor(dpr*0.7)) / dpr,
		XLabelY:     p.snap(p.y(math.Ceil(valueMin)) - 2),
	}
	l.YTicks = valueTicks(p, valueMin, valueMax, in.Unit)
	l.XTicks = hourTicks(p, timeStart, timeEnd, in.Now, loc)
	l.Segments = curve(p, in.Log)
	return l, nil
}

type projection struct {
	timeStart, timeSpan float64
	valueMax, valueSpan float64
	width, height, dpr  float64
}

func (p projection) x(t float64) float64 {
	return (t-p.timeStart)/p.timeSpan*p.width + 0.5
}

func (p projection) y(v float64) float64 {
	return (p.valueMax-v)/p.valueSpan*p.height + 0.5
}

// snap aligns a coordinate to the device pixel grid, centred on a pixel.
func (p projection) snap(c float64) float64 {
	return math.Floor(c*p.dpr+0.5)/p.dpr + 0.5
}

func title(in Input) string {
	name := in.Name
	if name == "" {
		name = in.Key
	}
	last := "(unknown)"
	if n := len(in.Log); n > 0 {
		last = fmt.Sprintf("%.1f", in.Log[n-1].Value) + in.Unit
	}
	return name + " — " + last
}

// checkTickable rejects ranges whose unit gridlines cannot be enumerated.
func checkTickable(lo, hi float64) error {
	if hi-lo > maxValueTicks || math.Abs(lo) >= maxExactValue || math.Abs(hi) >= maxExactValue {
		return fmt.Errorf("%w: min=%v max=%v", ErrRangeTooWide, lo, hi)
	}
	return nil
}

func valueTicks(p projection, lo, hi float64, unit string) []YTick {
	var ticks []YTick
	// The topmost gridline is the highest integer inside the range; one at
	// ceil(hi) would be drawn above the graph.
	for v := math.Floor(hi); v >= lo; v-- {
		iv := int64(v)
		t := YTick{Value: v, Y: p.snap(p.y(v)), Bold: iv%valueLabelEvery == 0}
		if t.Bold {
			t.Label = fmt.Sprintf("%d%s", iv, unit)
			t.LabelY = p.snap(p.y(v) - 2)
		}
		ticks = append(ticks, t)
	}
	return ticks
}

// hourTicks places a gridline on every local-clock hour inside the window.
func hourTicks(p projection, start, end float64, now time.Time, loc *time.Location) []XTick {
	_, offset := now.In(loc).Zone()
	first := int64(math.Ceil((start+float64(offset))/hourStep))*hourStep - int64(offset)

	var ticks []XTick
	for t := first; float64(t) <= end; t += hourStep {
		hour := time.Unix(t, 0).In(loc).Hour()
		tick := XTick{Time: t, X: p.snap(p.x(float64(t))), Bold: hour%boldHourEvery == 0}
		if tick.Bold && float64(t) > start+hourStep*labelEdgeMargin {
			tick.Label = fmt.Sprintf("%d", hour)
			tick.LabelX = p.snap(p.x(float64(t)) + 1)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

// curve walks the log and starts a new segment whenever the stroke style
// changes, seeding it with the previous sample.
func curve(p projection, log []models.LogPoint) []Segment {
	var (
		segs []Segment
		cur  *Segment
	)
	for i, row := range log {
		style := Connected
		if i > 0 {
			style = Classify(log[i-1], row)
		}
		if cur == nil || style != cur.Style {
			if cur != nil {
				segs = append(segs, *cur)
			}
			cur = &Segment{Style: style}
			if i > 0 {
				prev := log[i-1]
				cur.Points = append(cur.Points, Point{p.x(float64(prev.Time)), p.y(prev.Value)})
			}
		}
		cur.Points = append(cur.Points, Point{p.x(float64(row.Time)), p.y(row.Value)})
	}
	if cur != nil {
		segs = append(segs, *cur)
	}
	return segs
}
