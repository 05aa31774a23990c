// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package signature

import (
	"fmt"
	"strings"
)

// Parse reads a canonical name back into a descriptor.
// Canonicalize(Parse(s)) == s for every s produced by Canonicalize.
func Parse(s string) (*Descriptor, error) {
	p := &parser{s: s}
	d, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing input %q", p.s[p.pos:])
	}
	return d, nil
}

// Erasure strips generic arguments and array dimensions from a canonical
// name. Names that do not parse are cut at the first '<' or '['.
func Erasure(name string) string {
	d, err := Parse(name)
	if err != nil {
		if i := strings.IndexAny(name, "<["); i > 0 {
			return name[:i]
		}
		return name
	}
	for d.Kind == KindArray {
		d = d.Elem
	}
	if d.Kind == KindClass {
		return className(d.Name)
	}
	s, err := Canonicalize(d)
	if err != nil {
		return name
	}
	return s
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: parse %q at %d: %s", ErrMalformed, p.s, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("<>,[]?", rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) parseType() (*Descriptor, error) {
	var d *Descriptor
	if p.peek() == '<' {
		var err error
		if d, err = p.parseAngle(); err != nil {
			return nil, err
		}
	} else {
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected type name")
		}
		if IsPrimitive(name) {
			d = Primitive(name)
		} else {
			d = Class(name)
			if p.peek() == '<' {
				p.pos++
				for {
					arg, err := p.parseType()
					if err != nil {
						return nil, err
					}
					d.Args = append(d.Args, arg)
					if p.peek() == ',' {
						p.pos++
						continue
					}
					if err := p.expect('>'); err != nil {
						return nil, err
					}
					break
				}
			}
		}
	}

	dims := 0
	for strings.HasPrefix(p.s[p.pos:], "[]") {
		dims++
		p.pos += 2
	}
	if dims > 0 {
		d = Array(d, dims)
	}
	return d, nil
}

// parseAngle reads a type variable or a wildcard.
func (p *parser) parseAngle() (*Descriptor, error) {
	p.pos++
	if p.peek() != '?' {
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected type variable name")
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return TypeVar(name), nil
	}

	p.pos++
	switch p.peek() {
	case '>':
		p.pos++
		return Wildcard(), nil
	case '+', '-':
		dir := p.peek()
		p.pos++
		bound, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		if dir == '+' {
			return WildcardExtends(bound), nil
		}
		return WildcardSuper(bound), nil
	default:
		return nil, p.errorf("bad wildcard")
	}
}
