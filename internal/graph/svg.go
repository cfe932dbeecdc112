package graph

import (
	"fmt"
	"html"
	"strings"
)

// RenderSVG draws l as a standalone SVG document.
func RenderSVG(l *Layout) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="stats-graph" width="%.0f" height="%.0f" viewBox="0 0 %.3f %.3f">`,
		l.Width, l.Height, l.Width, l.Height)
	fmt.Fprintf(&b, `<title>%s</title>`, html.EscapeString(l.Title))

	sw := fmt.Sprintf("%.3fpx", l.StrokeWidth)
	b.WriteString(`<g class="grid">`)
	for _, t := range l.YTicks {
		class := "graph-grid-line-y2"
		if t.Bold {
			class = "graph-grid-line-y1"
		}
		fmt.Fprintf(&b, `<line class="%s" x1="0" x2="%.3f" y1="%.3f" y2="%.3f" stroke-width="%s"/>`, class, l.Width, t.Y, t.Y, sw)
		if t.Label != "" {
			fmt.Fprintf(&b, `<text class="graph-grid-text-y" x="2" y="%.3f">%s</text>`, t.LabelY, html.EscapeString(t.Label))
		}
	}
	for _, t := range l.XTicks {
		class := "graph-grid-line-x2"
		if t.Bold {
			class = "graph-grid-line-x"
		}
		fmt.Fprintf(&b, `<line class="%s" x1="%.3f" x2="%.3f" y1="0" y2="%.3f" stroke-width="%s"/>`, class, t.X, t.X, l.Height, sw)
		if t.Label != "" {
			fmt.Fprintf(&b, `<text class="graph-grid-text-x" x="%.3f" y="%.3f">%s</text>`, t.LabelX, l.XLabelY, t.Label)
		}
	}
	b.WriteString(`</g><g class="curve">`)
	for _, s := range l.Segments {
		fmt.Fprintf(&b, `<path class="graph-curve-%s" d="%s" fill="none"`, s.Style, PathData(s))
		if s.Style == Dotted {
			b.WriteString(` stroke-dasharray="2 3"`)
		}
		b.WriteString(`/>`)
	}
	b.WriteString(`</g></svg>`)
	return b.String()
}

// PathData encodes a segment as SVG path data ("M x y L x y ...").
func PathData(s Segment) string {
	var b strings.Builder
	for i, p := range s.Points {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		fmt.Fprintf(&b, "%.2f %.2f", p.X, p.Y)
	}
	return b.String()
}
