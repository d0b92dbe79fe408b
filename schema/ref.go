package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeRef is a declared type reference, e.g. OrderItem, List<OrderItem>
// or Map<string, Money>.
type TypeRef struct {
	Name string
	Args []TypeRef
}

// collectionNames maps the lower-cased generic names to collection kinds.
var collectionNames = map[string]CollectionKind{
	"list":        CollectionList,
	"mutablelist": CollectionList,
	"array":       CollectionList,
	"slice":       CollectionList,
	"set":         CollectionSet,
	"mutableset":  CollectionSet,
	"map":         CollectionMap,
	"mutablemap":  CollectionMap,
	"dict":        CollectionMap,
}

// dynamicNames are element names that carry no static type.
var dynamicNames = map[string]bool{
	"any":     true,
	"object":  true,
	"dynamic": true,
	"*":       true,
}

// Collection reports the collection kind of the reference, if any.
func (r TypeRef) Collection() (CollectionKind, bool) {
	k, ok := collectionNames[strings.ToLower(r.Name)]
	return k, ok
}

// Dynamic reports if the reference is an untyped element.
func (r TypeRef) Dynamic() bool {
	return dynamicNames[strings.ToLower(r.Name)]
}

// String formats the reference back into its declared form.
func (r TypeRef) String() string {
	if len(r.Args) == 0 {
		return r.Name
	}
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.String()
	}
	return r.Name + "<" + strings.Join(args, ", ") + ">"
}

// ParseTypeRef parses a declared type such as "Map<string, List<Money>>".
func ParseTypeRef(s string) (TypeRef, error) {
	p := &refParser{src: s}
	ref, err := p.parse()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeRef{}, fmt.Errorf("schema: unexpected %q at offset %d in type %q", p.src[p.pos:], p.pos, s)
	}
	return ref, nil
}

type refParser struct {
	src string
	pos int
}

func (p *refParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *refParser) parse() (TypeRef, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '.' && c != '*' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return TypeRef{}, fmt.Errorf("schema: missing type name at offset %d in type %q", p.pos, p.src)
	}
	ref := TypeRef{Name: p.src[start:p.pos]}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '<' {
		return ref, nil
	}
	p.pos++
	for {
		arg, err := p.parse()
		if err != nil {
			return TypeRef{}, err
		}
		ref.Args = append(ref.Args, arg)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return TypeRef{}, fmt.Errorf("schema: unterminated type arguments in type %q", p.src)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return ref, nil
		default:
			return TypeRef{}, fmt.Errorf("schema: unexpected %q at offset %d in type %q", p.src[p.pos], p.pos, p.src)
		}
	}
}
