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

package classfile

import (
	"fmt"
	"strings"

	"github.com/kraklabs/factbase/pkg/signature"
)

var baseTypes = map[byte]string{
	'B': "byte", 'C': "char", 'D': "double", 'F': "float",
	'I': "int", 'J': "long", 'S': "short", 'Z': "boolean", 'V': "void",
}

// sigParser reads JVM descriptors and generic signatures. Descriptors are
// the erased special case of signatures, so one grammar serves both.
type sigParser struct {
	s   string
	pos int
	err error
}

func (p *sigParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: signature %q at %d: %s", ErrMalformed, p.s, p.pos, fmt.Sprintf(format, args...))
	}
}

func (p *sigParser) more() bool {
	return p.err == nil && p.pos < len(p.s)
}

func (p *sigParser) peek() byte {
	if !p.more() {
		return 0
	}
	return p.s[p.pos]
}

func (p *sigParser) expect(c byte) {
	if p.peek() != c {
		p.fail("expected %q", c)
		return
	}
	p.pos++
}

// until consumes up to, not including, the first byte of stops.
func (p *sigParser) until(stops string) string {
	start := p.pos
	for p.more() && !strings.ContainsRune(stops, rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

type classSig struct {
	typeParams []signature.TypeParam
	super      *signature.Descriptor
	interfaces []*signature.Descriptor
}

type methodSig struct {
	typeParams []signature.TypeParam
	params     []*signature.Descriptor
	ret        *signature.Descriptor
}

func parseClassSignature(s string) (classSig, error) {
	p := &sigParser{s: s}
	cs := classSig{typeParams: p.typeParams()}
	cs.super = p.classType()
	for p.more() {
		cs.interfaces = append(cs.interfaces, p.classType())
	}
	return cs, p.err
}

func parseFieldSignature(s string) (*signature.Descriptor, error) {
	p := &sigParser{s: s}
	if p.peek() == 'V' {
		p.fail("void field")
		return nil, p.err
	}
	d := p.typeSig()
	if p.err == nil && p.pos != len(p.s) {
		p.fail("trailing input")
	}
	return d, p.err
}

func parseMethodSignature(s string) (methodSig, error) {
	p := &sigParser{s: s}
	ms := methodSig{typeParams: p.typeParams()}
	p.expect('(')
	for p.more() && p.peek() != ')' {
		ms.params = append(ms.params, p.typeSig())
	}
	p.expect(')')
	ms.ret = p.typeSig()
	// throws clauses are not recorded
	return ms, p.err
}

func (p *sigParser) typeParams() []signature.TypeParam {
	if p.peek() != '<' {
		return nil
	}
	p.pos++
	var out []signature.TypeParam
	for p.more() && p.peek() != '>' {
		tp := signature.TypeParam{Name: p.until(":")}
		for p.peek() == ':' {
			p.pos++
			switch p.peek() {
			case 'L', 'T', '[':
				tp.Bounds = append(tp.Bounds, p.fieldType())
			}
		}
		out = append(out, tp)
	}
	p.expect('>')
	return out
}

func (p *sigParser) typeSig() *signature.Descriptor {
	if name, ok := baseTypes[p.peek()]; ok {
		p.pos++
		return signature.Primitive(name)
	}
	return p.fieldType()
}

func (p *sigParser) fieldType() *signature.Descriptor {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		p.pos++
		name := p.until(";")
		p.expect(';')
		return signature.TypeVar(name)
	case '[':
		dims := 0
		for p.peek() == '[' {
			dims++
			p.pos++
		}
		if p.peek() == 'V' {
			p.fail("void array element")
			return nil
		}
		elem := p.typeSig()
		if elem == nil {
			return nil
		}
		return signature.Array(elem, dims)
	default:
		p.fail("unexpected %q", p.peek())
		return nil
	}
}

func (p *sigParser) classType() *signature.Descriptor {
	p.expect('L')
	name := p.until("<;.")
	var args []*signature.Descriptor
	if p.peek() == '<' {
		args = p.typeArgs()
	}
	for p.peek() == '.' {
		p.pos++
		name += "$" + p.until("<;.")
		args = nil
		if p.peek() == '<' {
			args = p.typeArgs()
		}
	}
	p.expect(';')
	if p.err != nil {
		return nil
	}
	return signature.Class(strings.ReplaceAll(name, "/", "."), args...)
}

func (p *sigParser) typeArgs() []*signature.Descriptor {
	p.pos++
	var out []*signature.Descriptor
	for p.more() && p.peek() != '>' {
		switch p.peek() {
		case '*':
			p.pos++
			out = append(out, signature.Wildcard())
		case '+':
			p.pos++
			out = append(out, signature.WildcardExtends(p.fieldType()))
		case '-':
			p.pos++
			out = append(out, signature.WildcardSuper(p.fieldType()))
		default:
			out = append(out, p.fieldType())
		}
	}
	p.expect('>')
	return out
}
