package resolution

import (
	"errors"
	"fmt"
	"math"
)

// MaxCandidates bounds the size of an expanded spec.
const MaxCandidates = 1_000_000

var (
	// ErrEmptySet is returned when a spec expands to no candidates.
	ErrEmptySet = errors.New("resolution: spec expands to no candidates")

	// ErrTooManyCandidates is returned when a spec would expand past MaxCandidates.
	ErrTooManyCandidates = errors.New("resolution: spec expands to too many candidates")
)

// Expand turns the spec into its deduplicated candidate set. The result
// does not depend on the order of terms in the spec.
func (s *Spec) Expand() (*CandidateSet, error) {
	if n := count(s.Terms); n > MaxCandidates {
		return nil, fmt.Errorf("%w: %q yields up to %d, limit %d", ErrTooManyCandidates, s.String(), n, MaxCandidates)
	}

	seen := make(map[Candidate]struct{})
	expand(s.Terms, func(c Candidate) {
		seen[c] = struct{}{}
	})
	if len(seen) == 0 {
		return nil, ErrEmptySet
	}

	items := make([]Candidate, 0, len(seen))
	for c := range seen {
		items = append(items, c)
	}
	return newCandidateSet(items), nil
}

func expand(t Term, emit func(Candidate)) {
	switch t := t.(type) {
	case Fixed:
		emit(Candidate{Width: t.Width, Height: t.Height})
	case Square:
		emit(Candidate{Width: t.N, Height: t.N})
	case Range:
		if t.Square {
			t.Width.each(func(n uint32) {
				emit(Candidate{Width: n, Height: n})
			})
			return
		}
		t.Width.each(func(w uint32) {
			t.Height.each(func(h uint32) {
				emit(Candidate{Width: w, Height: h})
			})
		})
	case Orientation:
		expand(t.Inner, func(c Candidate) {
			emit(c)
			if c.Width != c.Height {
				emit(c.Swap())
			}
		})
	case Union:
		for _, u := range t {
			expand(u, emit)
		}
	}
}

// count is an upper bound on the number of candidates a term emits,
// saturating at math.MaxUint64.
func count(t Term) uint64 {
	switch t := t.(type) {
	case Fixed, Square:
		return 1
	case Range:
		if t.Square {
			return t.Width.Len()
		}
		return satMul(t.Width.Len(), t.Height.Len())
	case Orientation:
		return satMul(count(t.Inner), 2)
	case Union:
		var n uint64
		for _, u := range t {
			c := count(u)
			if n > math.MaxUint64-c {
				return math.MaxUint64
			}
			n += c
		}
		return n
	}
	return 0
}

func satMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}
