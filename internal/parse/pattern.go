package parse

import (
	"fmt"
	"strings"

	"github.com/roach88/apiquery/internal/resource"
)

// kindSet is a set of field kinds a pattern element accepts.
type kindSet uint8

const (
	kindToOne kindSet = 1 << iota
	kindToMany
	kindAttribute

	kindRelationship = kindToOne | kindToMany
	kindField        = kindRelationship | kindAttribute
)

var kindLetters = map[byte]kindSet{
	'O': kindToOne,
	'M': kindToMany,
	'R': kindRelationship,
	'A': kindAttribute,
	'F': kindField,
}

func kindOf(f resource.Field) kindSet {
	switch x := f.(type) {
	case *resource.Attribute:
		return kindAttribute
	case *resource.Relationship:
		if x.IsToMany() {
			return kindToMany
		}
		return kindToOne
	}
	return 0
}

// singular and plural descriptions of every kind set.
var kindNames = map[kindSet][2]string{
	kindToOne:                  {"to-one relationship", "to-one relationships"},
	kindToMany:                 {"to-many relationship", "to-many relationships"},
	kindRelationship:           {"relationship", "relationships"},
	kindAttribute:              {"attribute", "attributes"},
	kindToOne | kindAttribute:  {"to-one relationship or attribute", "to-one relationships or attributes"},
	kindToMany | kindAttribute: {"to-many relationship or attribute", "to-many relationships or attributes"},
	kindField:                  {"field", "fields"},
}

func (k kindSet) name(plural bool) string {
	n := kindNames[k]
	if plural {
		return n[1]
	}
	return n[0]
}

type quantifier byte

const (
	exactlyOne quantifier = 0
	atMostOne  quantifier = '?'
	zeroOrMore quantifier = '*'
	oneOrMore  quantifier = '+'
)

type patternTerm struct {
	kinds kindSet
	quant quantifier
}

func (t patternTerm) description() string {
	switch t.quant {
	case atMostOne:
		return "an optional " + t.kinds.name(false)
	case zeroOrMore:
		return "zero or more " + t.kinds.name(true)
	case oneOrMore:
		return "one or more " + t.kinds.name(true)
	default:
		n := t.kinds.name(false)
		if strings.HasPrefix(n, "a") {
			return "an " + n
		}
		return "a " + n
	}
}

// step is one position of the compiled matcher. Repeating steps loop on
// themselves; optional steps may be skipped.
type step struct {
	kinds    kindSet
	optional bool
	repeat   bool
}

// Pattern constrains the sequence of field kinds in a chain. Letters: O
// (to-one relationship), M (to-many relationship), R (any relationship), A
// (attribute), F (any field); sets such as [OA]; quantifiers ?, * and +.
type Pattern struct {
	text  string
	terms []patternTerm
	steps []step
}

// Common patterns.
var (
	ToOneChainEndingInAttribute = MustPattern("O*A")
	ToOneChainEndingInToMany    = MustPattern("O*M")
	ToOneChain                  = MustPattern("O*")
	ChainEndingInToMany         = MustPattern("R*M")
	RelationshipChain           = MustPattern("R+")
	SingleField                 = MustPattern("F")
)

// ParsePattern compiles pattern text.
func ParsePattern(text string) (*Pattern, error) {
	p := &Pattern{text: text}
	i := 0
	for i < len(text) {
		var kinds kindSet
		switch c := text[i]; {
		case c == '[':
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("pattern %q: missing ]", text)
			}
			for j := i + 1; j < i+end; j++ {
				k, ok := kindLetters[text[j]]
				if !ok {
					return nil, fmt.Errorf("pattern %q: unknown kind %q", text, text[j])
				}
				kinds |= k
			}
			i += end + 1
		default:
			k, ok := kindLetters[c]
			if !ok {
				return nil, fmt.Errorf("pattern %q: unknown kind %q", text, c)
			}
			kinds = k
			i++
		}
		if kinds == 0 {
			return nil, fmt.Errorf("pattern %q: empty set", text)
		}

		term := patternTerm{kinds: kinds}
		if i < len(text) {
			switch q := quantifier(text[i]); q {
			case atMostOne, zeroOrMore, oneOrMore:
				term.quant = q
				i++
			}
		}
		p.terms = append(p.terms, term)

		switch term.quant {
		case exactlyOne:
			p.steps = append(p.steps, step{kinds: kinds})
		case atMostOne:
			p.steps = append(p.steps, step{kinds: kinds, optional: true})
		case zeroOrMore:
			p.steps = append(p.steps, step{kinds: kinds, optional: true, repeat: true})
		case oneOrMore:
			p.steps = append(p.steps, step{kinds: kinds}, step{kinds: kinds, optional: true, repeat: true})
		}
	}
	if len(p.terms) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return p, nil
}

// MustPattern is ParsePattern that panics on invalid text.
func MustPattern(text string) *Pattern {
	p, err := ParsePattern(text)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string { return p.text }

// Description renders the pattern in words, e.g. "zero or more to-one
// relationships, followed by an attribute".
func (p *Pattern) Description() string {
	parts := make([]string, len(p.terms))
	for i, t := range p.terms {
		parts[i] = t.description()
	}
	return strings.Join(parts, ", followed by ")
}

// closure expands a state set with every step reachable by skipping
// optional steps. State len(steps) is the accepting state.
func (p *Pattern) closure(states map[int]bool) map[int]bool {
	out := make(map[int]bool, len(states))
	for s := range states {
		for i := s; i <= len(p.steps); i++ {
			out[i] = true
			if i == len(p.steps) || !p.steps[i].optional {
				break
			}
		}
	}
	return out
}

// expected is the union of kinds acceptable from the given states.
func (p *Pattern) expected(states map[int]bool) (kinds kindSet, canEnd bool) {
	for s := range states {
		if s == len(p.steps) {
			canEnd = true
			continue
		}
		kinds |= p.steps[s].kinds
	}
	return kinds, canEnd
}

// matcher walks a chain one field at a time.
type matcher struct {
	p      *Pattern
	states map[int]bool
}

func (p *Pattern) newMatcher() *matcher {
	return &matcher{p: p, states: p.closure(map[int]bool{0: true})}
}

// feed advances over one field kind. It reports false, leaving the state
// untouched, when no state accepts the kind.
func (m *matcher) feed(k kindSet) bool {
	next := make(map[int]bool)
	for s := range m.states {
		if s == len(m.p.steps) {
			continue
		}
		st := m.p.steps[s]
		if st.kinds&k == 0 {
			continue
		}
		if st.repeat {
			next[s] = true
		} else {
			next[s+1] = true
		}
	}
	if len(next) == 0 {
		return false
	}
	m.states = m.p.closure(next)
	return true
}

func (m *matcher) accepting() bool {
	return m.states[len(m.p.steps)]
}

// expectation renders what the matcher would accept next, e.g. "To-one
// relationship or attribute".
func (m *matcher) expectation() string {
	kinds, _ := m.p.expected(m.states)
	text := "end of field chain"
	if kinds != 0 {
		text = kinds.name(false)
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
