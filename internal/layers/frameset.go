package layers

import (
	"time"

	"github.com/google/uuid"
)

// FrameSet is the ordered, deduplicated, capped frame sequence of one layer.
// It is built wholesale on each refresh and never mutated afterwards.
type FrameSet struct {
	layer  Type
	frames []Frame
}

// NewFrameSet wraps frames that are already ordered and deduplicated.
func NewFrameSet(layer Type, frames []Frame) FrameSet {
	cp := make([]Frame, len(frames))
	copy(cp, frames)
	return FrameSet{layer: layer, frames: cp}
}

// Layer returns the layer type the set belongs to.
func (s FrameSet) Layer() Type {
	return s.layer
}

// Len returns the number of frames.
func (s FrameSet) Len() int {
	return len(s.frames)
}

// IsEmpty reports whether the set has no frames.
func (s FrameSet) IsEmpty() bool {
	return len(s.frames) == 0
}

// At returns the frame at index i.
func (s FrameSet) At(i int) (Frame, bool) {
	if i < 0 || i >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[i], true
}

// Last returns the most recent frame.
func (s FrameSet) Last() (Frame, bool) {
	return s.At(len(s.frames) - 1)
}

// Frames returns a copy of the frames.
func (s FrameSet) Frames() []Frame {
	cp := make([]Frame, len(s.frames))
	copy(cp, s.frames)
	return cp
}

// Tokens returns the frame tokens in order.
func (s FrameSet) Tokens() []string {
	tokens := make([]string, len(s.frames))
	for i, f := range s.frames {
		tokens[i] = f.Token
	}
	return tokens
}

// KeepLast returns the newest n frames. The set itself is returned when it
// already fits.
func (s FrameSet) KeepLast(n int) FrameSet {
	if n <= 0 || len(s.frames) <= n {
		return s
	}
	return FrameSet{layer: s.layer, frames: s.frames[len(s.frames)-n:]}
}

// Relabel returns the same frames bound to another layer type. Clouds and
// temperature share the infrared satellite feed this way.
func (s FrameSet) Relabel(layer Type) FrameSet {
	return FrameSet{layer: layer, frames: s.frames}
}

// Catalog holds one FrameSet per layer type, as produced by a single refresh.
type Catalog struct {
	ID          string
	GeneratedAt time.Time
	FetchedAt   time.Time

	// Issues describes per-layer degradation, keyed by layer.
	Issues map[Type]string

	sets map[Type]FrameSet
}

// NewCatalog builds a catalog from per-layer frame sets.
func NewCatalog(sets map[Type]FrameSet, generatedAt time.Time) *Catalog {
	c := &Catalog{
		ID:          uuid.New().String(),
		GeneratedAt: generatedAt,
		FetchedAt:   time.Now(),
		Issues:      make(map[Type]string),
		sets:        make(map[Type]FrameSet, len(sets)),
	}
	for t, s := range sets {
		c.sets[t] = s.Relabel(t)
	}
	return c
}

// EmptyCatalog returns a catalog with no frames for any layer. Its FetchedAt
// is zero: nothing was fetched.
func EmptyCatalog() *Catalog {
	c := NewCatalog(nil, time.Time{})
	c.FetchedAt = time.Time{}
	return c
}

// Set returns the frame set of a layer, empty when the layer is absent.
func (c *Catalog) Set(t Type) FrameSet {
	if c == nil {
		return FrameSet{layer: t}
	}
	if s, ok := c.sets[t]; ok {
		return s
	}
	return FrameSet{layer: t}
}

// Capped returns the catalog with every set cut to its newest n frames,
// keeping ID, times and issues. It returns c when no set exceeds n.
func (c *Catalog) Capped(n int) *Catalog {
	if c == nil || n <= 0 {
		return c
	}
	over := false
	for _, s := range c.sets {
		over = over || s.Len() > n
	}
	if !over {
		return c
	}

	capped := &Catalog{
		ID:          c.ID,
		GeneratedAt: c.GeneratedAt,
		FetchedAt:   c.FetchedAt,
		Issues:      make(map[Type]string, len(c.Issues)),
		sets:        make(map[Type]FrameSet, len(c.sets)),
	}
	for t, issue := range c.Issues {
		capped.Issues[t] = issue
	}
	for t, s := range c.sets {
		capped.sets[t] = s.KeepLast(n)
	}
	return capped
}

// Counts returns the frame count per layer.
func (c *Catalog) Counts() map[Type]int {
	counts := make(map[Type]int, len(AllTypes()))
	for _, t := range AllTypes() {
		counts[t] = c.Set(t).Len()
	}
	return counts
}

// Empty reports whether no layer has frames.
func (c *Catalog) Empty() bool {
	for _, t := range AllTypes() {
		if !c.Set(t).IsEmpty() {
			return false
		}
	}
	return true
}
