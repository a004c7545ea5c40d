package animation

import (
	"fmt"
	"strings"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// DiagnosticSummary returns a one-line status text with frame counts, the
// playback interval and the reason for any degradation. It is meant for
// on-screen display only.
func (e *Engine) DiagnosticSummary() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder

	set := e.activeSet()
	fmt.Fprintf(&b, "%s: %d frames", e.layer.Label(), set.Len())
	if f, ok := set.At(e.frameIndex); ok {
		fmt.Fprintf(&b, " (frame %d/%d", e.frameIndex+1, set.Len())
		if ts := f.Timestamp(); !ts.IsZero() {
			fmt.Fprintf(&b, ", %s", ts.Format("15:04 MST"))
		}
		b.WriteString(")")
	}

	other := layers.Radar
	if !e.layer.SatelliteFamily() {
		other = layers.Satellite
	}
	fmt.Fprintf(&b, ", %s: %d", other.Label(), e.catalog.Set(other).Len())

	fmt.Fprintf(&b, " | %dms @ %dpx", e.interval.Milliseconds(), e.tileSize)
	fmt.Fprintf(&b, " | mode %s, showing %s", e.mode, e.render)
	if e.playing {
		b.WriteString(", playing")
	}

	if reason := e.degradation(); reason != "" {
		fmt.Fprintf(&b, " | degraded: %s", reason)
	}
	return b.String()
}

func (e *Engine) degradation() string {
	if e.degraded != "" {
		return e.degraded
	}
	if e.catalog != nil {
		return e.catalog.Issues[e.layer]
	}
	return ""
}
