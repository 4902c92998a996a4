// Package xpath implements the small path grammar used to address IATI
// activity content:
//
//	path      := step ('/' step)*
//	step      := '.' | name predicate? | '@' name
//	predicate := '[' '@' name '=' value ']'
//
// An attribute step may only appear last. Predicate values are bare or
// quoted with ' or ", and compare numerically when both sides are numbers.
package xpath

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dshills/iati3w/internal/xmlnode"
)

// ErrMalformedPath is wrapped by every Compile error.
var ErrMalformedPath = errors.New("malformed path")

type stepKind int

const (
	selfStep stepKind = iota
	childStep
	attrStep
)

type predicate struct {
	attr  string
	value string
}

func (p *predicate) matches(el *xmlnode.Element) bool {
	if p == nil {
		return true
	}
	a, ok := el.Attr(p.attr)
	if !ok {
		return false
	}
	if a.Value == p.value {
		return true
	}
	want, err1 := strconv.ParseFloat(p.value, 64)
	got, err2 := strconv.ParseFloat(a.Value, 64)
	return err1 == nil && err2 == nil && want == got
}

type step struct {
	kind stepKind
	name string
	pred *predicate
}

// Path is a compiled path expression. It is immutable and safe for
// concurrent use.
type Path struct {
	expr  string
	steps []step
}

func (p *Path) String() string { return p.expr }

// Compile parses expr.
func Compile(expr string) (*Path, error) {
	if expr == "" {
		return nil, malformed(expr, "empty path")
	}
	var steps []step
	rest := expr
	for {
		s, n, err := parseStep(expr, rest)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
		rest = rest[n:]
		if rest == "" {
			break
		}
		if rest[0] != '/' {
			return nil, malformed(expr, fmt.Sprintf("unexpected %q", rest))
		}
		rest = rest[1:]
		if rest == "" {
			return nil, malformed(expr, "trailing '/'")
		}
	}
	for i, s := range steps {
		if s.kind == attrStep && i != len(steps)-1 {
			return nil, malformed(expr, "attribute step must be last")
		}
	}
	return &Path{expr: expr, steps: steps}, nil
}

// MustCompile is like Compile but panics if expr is malformed. It is meant
// for paths written as literals in source.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func malformed(expr, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedPath, expr, reason)
}

func parseStep(expr, s string) (step, int, error) {
	switch {
	case s == "." || (len(s) > 1 && s[0] == '.' && s[1] == '/'):
		return step{kind: selfStep}, 1, nil
	case s[0] == '@':
		name := scanName(s[1:])
		if name == "" {
			return step{}, 0, malformed(expr, "missing attribute name")
		}
		return step{kind: attrStep, name: name}, 1 + len(name), nil
	}

	name := scanName(s)
	if name == "" {
		return step{}, 0, malformed(expr, fmt.Sprintf("expected element name at %q", s))
	}
	st := step{kind: childStep, name: name}
	n := len(name)
	if n < len(s) && s[n] == '[' {
		pred, m, err := parsePredicate(expr, s[n:])
		if err != nil {
			return step{}, 0, err
		}
		st.pred = pred
		n += m
	}
	return st, n, nil
}

// parsePredicate parses "[@name=value]" at the start of s.
func parsePredicate(expr, s string) (*predicate, int, error) {
	if len(s) < 2 || s[1] != '@' {
		return nil, 0, malformed(expr, "predicate must test an attribute")
	}
	i := 2
	attr := scanName(s[i:])
	if attr == "" {
		return nil, 0, malformed(expr, "missing predicate attribute name")
	}
	i += len(attr)
	if i >= len(s) || s[i] != '=' {
		return nil, 0, malformed(expr, "predicate must be an equality")
	}
	i++
	if i >= len(s) {
		return nil, 0, malformed(expr, "unterminated predicate")
	}

	var value string
	if q := s[i]; q == '\'' || q == '"' {
		end := i + 1
		for end < len(s) && s[end] != q {
			end++
		}
		if end >= len(s) {
			return nil, 0, malformed(expr, "unterminated quoted value")
		}
		value = s[i+1 : end]
		i = end + 1
	} else {
		start := i
		for i < len(s) && s[i] != ']' && s[i] != '[' {
			i++
		}
		value = s[start:i]
		if value == "" {
			return nil, 0, malformed(expr, "empty predicate value")
		}
	}
	if i >= len(s) || s[i] != ']' {
		return nil, 0, malformed(expr, "unterminated predicate")
	}
	return &predicate{attr: attr, value: value}, i + 1, nil
}

func scanName(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !letter {
			break
		}
		if !letter && !(c >= '0' && c <= '9') && c != '-' && c != '.' && c != ':' {
			break
		}
		i++
	}
	return s[:i]
}

// Find returns every node p selects under base, in document order.
func (p *Path) Find(base *xmlnode.Element) []xmlnode.Ref {
	if base == nil {
		return nil
	}
	current := []*xmlnode.Element{base}
	for _, s := range p.steps {
		switch s.kind {
		case selfStep:
		case attrStep:
			var out []xmlnode.Ref
			for _, el := range current {
				if a, ok := el.Attr(s.name); ok {
					out = append(out, a)
				}
			}
			return out
		case childStep:
			var next []*xmlnode.Element
			for _, el := range current {
				for _, c := range el.Children {
					if c.Name == s.name && s.pred.matches(c) {
						next = append(next, c)
					}
				}
			}
			current = next
		}
		if len(current) == 0 {
			return nil
		}
	}
	out := make([]xmlnode.Ref, len(current))
	for i, el := range current {
		out[i] = el
	}
	return out
}

// FindOne returns the first node p selects under base, or nil.
func (p *Path) FindOne(base *xmlnode.Element) xmlnode.Ref {
	refs := p.Find(base)
	if len(refs) == 0 {
		return nil
	}
	return refs[0]
}

// ValueOf returns the text of the first node p selects under base, or nil
// when nothing matches.
func (p *Path) ValueOf(base *xmlnode.Element) *string {
	ref := p.FindOne(base)
	if ref == nil {
		return nil
	}
	s := ref.Text()
	return &s
}

var cache sync.Map // expr -> *Path

// Lookup returns the compiled form of expr, compiling it once per distinct
// string. It panics on a malformed expression.
func Lookup(expr string) *Path {
	if p, ok := cache.Load(expr); ok {
		return p.(*Path)
	}
	p, _ := cache.LoadOrStore(expr, MustCompile(expr))
	return p.(*Path)
}

// Find compiles expr through Lookup and applies it to base.
func Find(expr string, base *xmlnode.Element) []xmlnode.Ref {
	return Lookup(expr).Find(base)
}

// FindOne compiles expr through Lookup and returns its first match.
func FindOne(expr string, base *xmlnode.Element) xmlnode.Ref {
	return Lookup(expr).FindOne(base)
}

// ValueOf compiles expr through Lookup and returns its first match's text.
func ValueOf(expr string, base *xmlnode.Element) *string {
	return Lookup(expr).ValueOf(base)
}
