// Package resolution implements the --res notation: a small grammar for
// describing families of target resolutions, its expansion into a concrete
// candidate set, and nearest-aspect selection against that set.
//
// Notation:
//
//	1024x768          fixed width x height
//	1024              square, same as 1024x1024
//	512:1024:64       square range, 512x512, 576x576, ... 1024x1024
//	512:1024:64x512   range on one axis, fixed on the other
//	512:768:64x768:1024:32
//	                  cross product of two ranged axes
//	[512x768]         either orientation, 512x768 and 768x512
//	a,b,c             union of terms; brackets may hold a whole list
//
// The step of a range is optional and defaults to 1.
package resolution

import (
	"fmt"
	"strings"
)

// Term is one node of a parsed resolution spec. The concrete types are
// Fixed, Square, Range, Orientation and Union.
type Term interface {
	fmt.Stringer
	term()
}

// Fixed is an exact width x height.
type Fixed struct {
	Width, Height uint32
}

// Square is shorthand for Fixed{N, N}.
type Square struct {
	N uint32
}

// Axis is an inclusive arithmetic sequence Lo, Lo+Step, ... <= Hi.
// A fixed value n is the axis {n, n, 1}.
type Axis struct {
	Lo, Hi, Step uint32
}

// Range ranges one or both axes. When Square is set only Width is used and
// every value is paired with itself; otherwise the result is the cross
// product of Width and Height.
type Range struct {
	Width, Height Axis
	Square        bool
}

// Orientation emits every candidate of Inner in both orientations.
type Orientation struct {
	Inner Union
}

// Union is a comma-joined list of terms.
type Union []Term

func (Fixed) term()       {}
func (Square) term()      {}
func (Range) term()       {}
func (Orientation) term() {}
func (Union) term()       {}

func (f Fixed) String() string  { return fmt.Sprintf("%dx%d", f.Width, f.Height) }
func (s Square) String() string { return fmt.Sprintf("%d", s.N) }

func (r Range) String() string {
	if r.Square {
		return r.Width.String()
	}
	return r.Width.String() + "x" + r.Height.String()
}

func (o Orientation) String() string { return "[" + o.Inner.String() + "]" }

func (u Union) String() string {
	parts := make([]string, len(u))
	for i, t := range u {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func (a Axis) String() string {
	switch {
	case a.Lo == a.Hi && a.Step == 1:
		return fmt.Sprintf("%d", a.Lo)
	case a.Step == 1:
		return fmt.Sprintf("%d:%d", a.Lo, a.Hi)
	default:
		return fmt.Sprintf("%d:%d:%d", a.Lo, a.Hi, a.Step)
	}
}

// Len is the number of values the axis produces.
func (a Axis) Len() uint64 {
	return uint64(a.Hi-a.Lo)/uint64(a.Step) + 1
}

// each calls fn for Lo, Lo+Step, ... up to the largest value <= Hi.
func (a Axis) each(fn func(uint32)) {
	for v := uint64(a.Lo); v <= uint64(a.Hi); v += uint64(a.Step) {
		fn(uint32(v))
	}
}

// Spec is a parsed --res argument. The top level is an implicit Union.
type Spec struct {
	Terms Union
}

// String returns the spec in normalized notation.
func (s *Spec) String() string { return s.Terms.String() }
