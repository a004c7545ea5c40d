package feed

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// MaxWalkDepth bounds the recursive satellite walk over unknown payloads.
const MaxWalkDepth = 12

// NormalizeRadar extracts radar frames from a bulk metadata payload.
// Past and nowcast timestamps are concatenated, coerced to numbers, sorted,
// deduplicated and trimmed to the most recent maxFrames (maxFrames <= 0 keeps all).
func NormalizeRadar(payload []byte, maxFrames int) layers.FrameSet {
	root := gjson.ParseBytes(payload)

	radar := root.Get("radar")
	if !radar.Exists() {
		// Older payloads carried the sequences at the top level.
		radar = root
	}

	var stamps []int64
	for _, key := range []string{"past", "nowcast"} {
		radar.Get(key).ForEach(func(_, entry gjson.Result) bool {
			if entry.IsObject() {
				entry = entry.Get("time")
			}
			if v, ok := coerceNumber(entry); ok {
				stamps = append(stamps, int64(v))
			}
			return true
		})
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	frames := make([]layers.Frame, 0, len(stamps))
	for i, ts := range stamps {
		if i > 0 && stamps[i-1] == ts {
			continue
		}
		frames = append(frames, layers.RadarFrame(ts))
	}

	return layers.NewFrameSet(layers.Radar, keepLast(frames, maxFrames))
}

// SatelliteNode returns the satellite section of a bulk metadata payload.
func SatelliteNode(payload []byte) gjson.Result {
	return gjson.GetBytes(payload, "satellite")
}

// NormalizeSatellite walks an arbitrarily nested value and collects every
// object exposing a string "path" and an optional numeric "time". Frames are
// deduplicated by path (first occurrence in document order wins), stably
// sorted by time (missing time sorts as 0) and trimmed to the last maxFrames.
func NormalizeSatellite(node gjson.Result, maxFrames int) layers.FrameSet {
	var frames []layers.Frame
	seen := make(map[string]struct{})
	walk(node, 0, func(obj gjson.Result) {
		f, ok := satelliteFrame(obj)
		if !ok {
			return
		}
		if _, dup := seen[f.Token]; dup {
			return
		}
		seen[f.Token] = struct{}{}
		frames = append(frames, f)
	})

	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Time < frames[j].Time })

	return layers.NewFrameSet(layers.Satellite, keepLast(frames, maxFrames))
}

// walk visits every object in node, depth first, in document order.
func walk(node gjson.Result, depth int, visit func(obj gjson.Result)) {
	if depth > MaxWalkDepth {
		return
	}
	switch {
	case node.IsObject():
		visit(node)
		fallthrough
	case node.IsArray():
		node.ForEach(func(_, child gjson.Result) bool {
			walk(child, depth+1, visit)
			return true
		})
	}
}

func satelliteFrame(obj gjson.Result) (layers.Frame, bool) {
	path := obj.Get("path")
	if path.Type != gjson.String || path.Str == "" {
		return layers.Frame{}, false
	}

	f := layers.Frame{Token: path.Str}
	if v, ok := coerceNumber(obj.Get("time")); ok {
		f.Time = int64(v)
	}
	return f, true
}

// coerceNumber converts numbers and numeric strings to timestamps. Values
// that are non-finite or do not fit an int64 are rejected.
func coerceNumber(v gjson.Result) (float64, bool) {
	var n float64
	switch v.Type {
	case gjson.Number:
		n = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || n < math.MinInt64 || n >= math.MaxInt64 {
		return 0, false
	}
	return n, true
}

// keepLast drops the oldest frames so at most n remain.
func keepLast(frames []layers.Frame, n int) []layers.Frame {
	if n <= 0 || len(frames) <= n {
		return frames
	}
	return frames[len(frames)-n:]
}
