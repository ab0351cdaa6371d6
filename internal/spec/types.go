package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Cleanup region limits. A test owns at most one 15x15 column of the
// world, the full build height tall.
const (
	MaxWidth  = 15
	MaxHeight = 384
	MaxDepth  = 15
)

// MaxCoordinate bounds every coordinate a test may name, on each axis
// and in both directions. It matches the world border.
const MaxCoordinate = 30_000_000

// DefaultNamespace is assumed for block ids written without one.
const DefaultNamespace = "minecraft"

// Air is the empty block. Cleanup fills and remove actions write it.
const Air = DefaultNamespace + ":air"

// QualifyBlockID prefixes id with DefaultNamespace when it has none.
func QualifyBlockID(id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return DefaultNamespace + ":" + id
}

// Pos is an integer block position [x, y, z].
type Pos [3]int

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d, %d]", p[0], p[1], p[2])
}

// Region is an axis-aligned box given by two opposite corners. The
// corners may be in any order; Normalize sorts them per axis.
type Region [2]Pos

// Normalize returns the region with Min in [0] and Max in [1].
func (r Region) Normalize() Region {
	var out Region
	for axis := 0; axis < 3; axis++ {
		lo, hi := r[0][axis], r[1][axis]
		if lo > hi {
			lo, hi = hi, lo
		}
		out[0][axis] = lo
		out[1][axis] = hi
	}
	return out
}

// Min returns the smallest corner.
func (r Region) Min() Pos { return r.Normalize()[0] }

// Max returns the largest corner.
func (r Region) Max() Pos { return r.Normalize()[1] }

// Size returns the extent of the region along x, y and z, inclusive.
// An extent too large for an int is reported as math.MaxInt.
func (r Region) Size() (w, h, d int) {
	n := r.Normalize()
	return extent(n[0][0], n[1][0]), extent(n[0][1], n[1][1]), extent(n[0][2], n[1][2])
}

// extent returns hi-lo+1 for lo <= hi, saturating at math.MaxInt.
func extent(lo, hi int) int {
	// hi-lo may wrap, but read as unsigned it is the exact distance.
	d := uint64(hi - lo)
	if d >= math.MaxInt {
		return math.MaxInt
	}
	return int(d) + 1
}

// Volume returns the number of block positions inside the region,
// saturating at math.MaxInt.
func (r Region) Volume() int {
	w, h, d := r.Size()
	v := uint64(w)
	for _, n := range []int{h, d} {
		hi, lo := bits.Mul64(v, uint64(n))
		if hi != 0 || lo > math.MaxInt {
			return math.MaxInt
		}
		v = lo
	}
	return int(v)
}

// Contains reports whether p lies inside the region, bounds included.
func (r Region) Contains(p Pos) bool {
	n := r.Normalize()
	for axis := 0; axis < 3; axis++ {
		if p[axis] < n[0][axis] || p[axis] > n[1][axis] {
			return false
		}
	}
	return true
}

// Each calls fn for every position inside the region in x, z, y order
// (y outermost).
func (r Region) Each(fn func(Pos)) {
	n := r.Normalize()
	for y := n[0][1]; ; y++ {
		for z := n[0][2]; ; z++ {
			for x := n[0][0]; ; x++ {
				fn(Pos{x, y, z})
				if x == n[1][0] {
					break
				}
			}
			if z == n[1][2] {
				break
			}
		}
		if y == n[1][1] {
			break
		}
	}
}

// InBounds reports whether every coordinate of p lies within
// ±MaxCoordinate.
func (p Pos) InBounds() bool {
	for _, c := range p {
		if c < -MaxCoordinate || c > MaxCoordinate {
			return false
		}
	}
	return true
}

func (r Region) String() string {
	return fmt.Sprintf("%s..%s", r[0], r[1])
}

// TestSpec is one test file.
type TestSpec struct {
	FlintVersion string          `json:"flintVersion,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Setup        *Setup          `json:"setup,omitempty"`
	Timeline     []TimelineEvent `json:"timeline"`

	// Source is the file the spec was loaded from, empty for specs built
	// in code.
	Source string `json:"-"`
}

// Setup holds per-test preparation.
type Setup struct {
	Cleanup Cleanup `json:"cleanup"`
}

// Cleanup names the region reset to air before and after the test.
type Cleanup struct {
	Region Region `json:"region"`
}

// CleanupRegion returns the normalized cleanup region, if any.
func (s *TestSpec) CleanupRegion() (Region, bool) {
	if s.Setup == nil {
		return Region{}, false
	}
	return s.Setup.Cleanup.Region.Normalize(), true
}

// HasTag reports whether the spec carries tag.
func (s *TestSpec) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// At is the `at` field of a timeline event: a single tick or a list of
// ticks. List remembers which form the file used.
type At struct {
	Ticks []int
	List  bool
}

// Tick returns an At for a single tick.
func Tick(t int) At { return At{Ticks: []int{t}} }

// Ticks returns an At for a list of ticks.
func Ticks(ts ...int) At { return At{Ticks: ts, List: true} }

// UnmarshalJSON accepts either an integer or an array of integers.
func (a *At) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ticks []int
		if err := json.Unmarshal(data, &ticks); err != nil {
			return fmt.Errorf("at: %w", err)
		}
		a.Ticks = ticks
		a.List = true
		return nil
	}
	var t int
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("at: %w", err)
	}
	a.Ticks = []int{t}
	a.List = false
	return nil
}

// MarshalJSON writes the form the value was read in.
func (a At) MarshalJSON() ([]byte, error) {
	if !a.List && len(a.Ticks) == 1 {
		return json.Marshal(a.Ticks[0])
	}
	ticks := a.Ticks
	if ticks == nil {
		ticks = []int{}
	}
	return json.Marshal(ticks)
}
