package resolution

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"slices"
)

// Candidate is one concrete target resolution.
type Candidate struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (c Candidate) String() string { return fmt.Sprintf("%dx%d", c.Width, c.Height) }

// Swap returns the candidate in the other orientation.
func (c Candidate) Swap() Candidate { return Candidate{Width: c.Height, Height: c.Width} }

// Area is the pixel count.
func (c Candidate) Area() uint64 { return uint64(c.Width) * uint64(c.Height) }

// Aspect is the exact width/height ratio.
func (c Candidate) Aspect() Ratio { return Ratio{Num: uint64(c.Width), Den: uint64(c.Height)} }

// Ratio is an unreduced rational Num/Den.
type Ratio struct {
	Num, Den uint64
}

// Log returns ln(Num/Den).
func (r Ratio) Log() float64 {
	return math.Log(float64(r.Num)) - math.Log(float64(r.Den))
}

// CandidateSet is an immutable, deduplicated set of candidates kept in
// canonical order: descending by width, then by height. It is safe for
// concurrent use.
type CandidateSet struct {
	items []Candidate
}

// NewCandidateSet builds a set from arbitrary candidates, dropping
// duplicates and zero-sized entries.
func NewCandidateSet(cs ...Candidate) (*CandidateSet, error) {
	items := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if c.Width == 0 || c.Height == 0 {
			continue
		}
		items = append(items, c)
	}
	if len(items) == 0 {
		return nil, ErrEmptySet
	}
	return newCandidateSet(items), nil
}

func newCandidateSet(items []Candidate) *CandidateSet {
	slices.SortFunc(items, func(a, b Candidate) int {
		if c := cmp.Compare(b.Width, a.Width); c != 0 {
			return c
		}
		return cmp.Compare(b.Height, a.Height)
	})
	return &CandidateSet{items: slices.Compact(items)}
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int { return len(s.items) }

// All returns a copy of the candidates in canonical order.
func (s *CandidateSet) All() []Candidate { return slices.Clone(s.items) }

// Contains reports whether c is in the set.
func (s *CandidateSet) Contains(c Candidate) bool {
	_, ok := slices.BinarySearchFunc(s.items, c, func(e, t Candidate) int {
		if c := cmp.Compare(t.Width, e.Width); c != 0 {
			return c
		}
		return cmp.Compare(t.Height, e.Height)
	})
	return ok
}

// ErrInvalidSource is returned by Match for non-positive source dimensions.
var ErrInvalidSource = errors.New("resolution: source dimensions must be positive")

// Match returns the candidate whose aspect ratio is nearest to
// width/height in log space. Ties go to the larger area, then to the
// earlier candidate in canonical order. Orientation is never flipped here.
func (s *CandidateSet) Match(width, height int) (Candidate, error) {
	if width <= 0 || height <= 0 || uint64(width) > math.MaxUint32 || uint64(height) > math.MaxUint32 {
		return Candidate{}, fmt.Errorf("%w: %dx%d", ErrInvalidSource, width, height)
	}
	if len(s.items) == 0 {
		return Candidate{}, ErrEmptySet
	}

	sw, sh := uint64(width), uint64(height)
	best := s.items[0]
	bestD := aspectDistance(sw, sh, best)
	for _, c := range s.items[1:] {
		d := aspectDistance(sw, sh, c)
		switch d.compare(bestD) {
		case -1:
			best, bestD = c, d
		case 0:
			if c.Area() > best.Area() {
				best, bestD = c, d
			}
		}
	}
	return best, nil
}

// LogDistance is |ln(width/height) - ln(c.Width/c.Height)|.
func LogDistance(width, height int, c Candidate) float64 {
	return math.Abs(Ratio{Num: uint64(width), Den: uint64(height)}.Log() - c.Aspect().Log())
}

// distance is exp(LogDistance) kept exact as hi/lo with hi >= lo.
type distance struct {
	hi, lo uint64
}

func aspectDistance(sw, sh uint64, c Candidate) distance {
	p := sw * uint64(c.Height)
	q := sh * uint64(c.Width)
	if p < q {
		p, q = q, p
	}
	return distance{hi: p, lo: q}
}

// compare orders d.hi/d.lo against e.hi/e.lo using 128-bit products.
func (d distance) compare(e distance) int {
	ah, al := bits.Mul64(d.hi, e.lo)
	bh, bl := bits.Mul64(e.hi, d.lo)
	switch {
	case ah < bh || (ah == bh && al < bl):
		return -1
	case ah > bh || (ah == bh && al > bl):
		return 1
	}
	return 0
}
