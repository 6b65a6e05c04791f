package resolution

import (
	"fmt"
	"strconv"
)

// ParseError reports a malformed resolution spec.
type ParseError struct {
	Input    string
	Offset   int    // byte offset of the offending fragment
	Fragment string // offending text, empty at end of input
	Expected string // construct the parser wanted
}

func (e *ParseError) Error() string {
	near := "end of input"
	if e.Fragment != "" {
		near = strconv.Quote(e.Fragment)
	}
	return fmt.Sprintf("resolution: invalid spec %q at offset %d near %s: expected %s",
		e.Input, e.Offset, near, e.Expected)
}

// Parse parses a complete resolution spec. Whitespace is allowed around
// terms, commas and brackets but not inside a term.
func Parse(s string) (*Spec, error) {
	p := &parser{in: s}
	terms, err := p.list()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return nil, p.fail(p.pos, "',' or end of input")
	}
	return &Spec{Terms: terms}, nil
}

// ParseSet parses s and expands it in one step.
func ParseSet(s string) (*CandidateSet, error) {
	spec, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return spec.Expand()
}

type parser struct {
	in  string
	pos int
}

// list := term (',' term)*
func (p *parser) list() (Union, error) {
	var terms Union
	for {
		p.skipSpace()
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		p.skipSpace()
		if !p.accept(',') {
			return terms, nil
		}
	}
}

// term := '[' list ']' | axis ('x' axis)?
func (p *parser) term() (Term, error) {
	if p.accept('[') {
		inner, err := p.list()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.accept(']') {
			return nil, p.fail(p.pos, "',' or ']'")
		}
		return Orientation{Inner: inner}, nil
	}

	w, wRanged, err := p.axis()
	if err != nil {
		return nil, err
	}
	if !p.accept('x') {
		if wRanged {
			return Range{Width: w, Square: true}, nil
		}
		return Square{N: w.Lo}, nil
	}
	h, hRanged, err := p.axis()
	if err != nil {
		return nil, err
	}
	if !wRanged && !hRanged {
		return Fixed{Width: w.Lo, Height: h.Lo}, nil
	}
	return Range{Width: w, Height: h}, nil
}

// axis := INT (':' INT (':' INT)?)?
func (p *parser) axis() (Axis, bool, error) {
	start := p.pos
	lo, err := p.number("size")
	if err != nil {
		return Axis{}, false, err
	}
	if !p.accept(':') {
		return Axis{Lo: lo, Hi: lo, Step: 1}, false, nil
	}
	hi, err := p.number("range end")
	if err != nil {
		return Axis{}, false, err
	}
	step := uint32(1)
	if p.accept(':') {
		if step, err = p.number("range step"); err != nil {
			return Axis{}, false, err
		}
	}
	if hi < lo {
		return Axis{}, false, &ParseError{
			Input:    p.in,
			Offset:   start,
			Fragment: p.in[start:p.pos],
			Expected: "range with start <= end",
		}
	}
	return Axis{Lo: lo, Hi: hi, Step: step}, true, nil
}

// number reads a non-zero unsigned 32-bit decimal.
func (p *parser) number(what string) (uint32, error) {
	start := p.pos
	for p.pos < len(p.in) && p.in[p.pos] >= '0' && p.in[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, p.fail(start, what+" (unsigned integer)")
	}
	digits := p.in[start:p.pos]
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, &ParseError{Input: p.in, Offset: start, Fragment: digits, Expected: what + " that fits in 32 bits"}
	}
	if n == 0 {
		return 0, &ParseError{Input: p.in, Offset: start, Fragment: digits, Expected: "non-zero " + what}
	}
	return uint32(n), nil
}

func (p *parser) accept(c byte) bool {
	if p.pos < len(p.in) && p.in[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.in) {
		switch p.in[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// fail builds a ParseError quoting a short window of input from offset.
func (p *parser) fail(offset int, expected string) *ParseError {
	frag := p.in[offset:]
	if len(frag) > 16 {
		frag = frag[:16]
	}
	return &ParseError{Input: p.in, Offset: offset, Fragment: frag, Expected: expected}
}
