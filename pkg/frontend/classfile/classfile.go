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

// Package classfile reads compiled JVM class files.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/signature"
)

// ErrMalformed is returned for bytes that are not a readable class file.
var ErrMalformed = errors.New("classfile: malformed")

const magic = 0xCAFEBABE

// JVM access flags that do not map onto declaration modifiers.
const (
	accSuper      = 0x0020
	accAnnotation = 0x2000
	accEnum       = 0x4000
	accInterface  = 0x0200
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type reader struct {
	b   []byte
	pos int
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrMalformed, fmt.Sprintf(format, args...), r.pos)
	}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.b) {
		r.fail("truncated")
		return nil
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) u1() int {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return int(b[0])
}

func (r *reader) u2() int {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint16(b))
}

func (r *reader) u4() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

type pool struct {
	utf8  map[int]string
	class map[int]int
}

func (p *pool) str(i int) string { return p.utf8[i] }

func (p *pool) className(i int) string {
	if i == 0 {
		return ""
	}
	return p.utf8[p.class[i]]
}

func readPool(r *reader) *pool {
	n := r.u2()
	p := &pool{utf8: make(map[int]string), class: make(map[int]int)}
	for i := 1; i < n && r.err == nil; i++ {
		switch tag := r.u1(); tag {
		case tagUtf8:
			p.utf8[i] = string(r.bytes(r.u2()))
		case tagClass:
			p.class[i] = r.u2()
		case tagString, tagMethodType, tagModule, tagPackage:
			r.bytes(2)
		case tagMethodHandle:
			r.bytes(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			r.bytes(4)
		case tagLong, tagDouble:
			r.bytes(8)
			i++
		default:
			r.fail("constant pool tag %d", tag)
		}
	}
	return p
}

type attribute struct {
	name string
	data []byte
}

func readAttributes(r *reader, p *pool) []attribute {
	n := r.u2()
	out := make([]attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name := p.str(r.u2())
		data := r.bytes(int(r.u4()))
		out = append(out, attribute{name: name, data: data})
	}
	return out
}

func findAttribute(attrs []attribute, name string) []byte {
	for _, a := range attrs {
		if a.name == name {
			return a.data
		}
	}
	return nil
}

type member struct {
	access     int
	name       string
	descriptor string
	attrs      []attribute
}

func readMembers(r *reader, p *pool) []member {
	n := r.u2()
	out := make([]member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := member{access: r.u2(), name: p.str(r.u2()), descriptor: p.str(r.u2())}
		m.attrs = readAttributes(r, p)
		out = append(out, m)
	}
	return out
}

// Parse reads one class file into a type declaration. Generic signatures
// are used when present; otherwise the erased descriptors are.
func Parse(data []byte) (facts.TypeDecl, error) {
	r := &reader{b: data}
	if r.u4() != magic {
		return facts.TypeDecl{}, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	r.u2() // minor
	r.u2() // major
	p := readPool(r)

	access := r.u2()
	this := p.className(r.u2())
	super := p.className(r.u2())
	var ifaces []string
	for i, n := 0, r.u2(); i < n && r.err == nil; i++ {
		ifaces = append(ifaces, p.className(r.u2()))
	}
	fields := readMembers(r, p)
	methods := readMembers(r, p)
	attrs := readAttributes(r, p)
	if r.err != nil {
		return facts.TypeDecl{}, r.err
	}
	if this == "" {
		return facts.TypeDecl{}, fmt.Errorf("%w: missing this_class", ErrMalformed)
	}

	fqn := strings.ReplaceAll(this, "/", ".")
	td := facts.TypeDecl{FQN: fqn}
	if i := strings.LastIndexByte(fqn, '.'); i > 0 {
		td.Package = fqn[:i]
	}

	switch {
	case access&accAnnotation != 0:
		td.Kind = facts.TypeAnnotation
	case access&accInterface != 0:
		td.Kind = facts.TypeInterface
	case access&accEnum != 0:
		td.Kind = facts.TypeEnum
	default:
		td.Kind = facts.TypeClass
	}
	td.Modifiers = facts.Modifiers(access &^ accSuper)
	if inner, ok := innerClass(findAttribute(attrs, "InnerClasses"), p, this); ok {
		td.Anonymous = inner.anonymous
		td.Member = !inner.anonymous
		td.Modifiers = facts.Modifiers(inner.access &^ accSuper)
	}

	if sig := findAttribute(attrs, "Signature"); len(sig) == 2 {
		cs, err := parseClassSignature(p.str(int(binary.BigEndian.Uint16(sig))))
		if err != nil {
			return facts.TypeDecl{}, err
		}
		td.TypeParams, td.Superclass, td.Interfaces = cs.typeParams, cs.super, cs.interfaces
	} else {
		if super != "" {
			td.Superclass = signature.Class(strings.ReplaceAll(super, "/", "."))
		}
		for _, i := range ifaces {
			td.Interfaces = append(td.Interfaces, signature.Class(strings.ReplaceAll(i, "/", ".")))
		}
	}
	if td.Kind == facts.TypeInterface || td.Kind == facts.TypeAnnotation {
		td.Superclass = nil
	}

	for _, f := range fields {
		fd, err := field(f, p)
		if err != nil {
			return facts.TypeDecl{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		td.Fields = append(td.Fields, fd)
	}
	for _, m := range methods {
		md, err := method(m, p)
		if err != nil {
			return facts.TypeDecl{}, fmt.Errorf("method %s: %w", m.name, err)
		}
		td.Methods = append(td.Methods, md)
	}
	return td, nil
}

func signatureOf(attrs []attribute, p *pool) string {
	sig := findAttribute(attrs, "Signature")
	if len(sig) != 2 {
		return ""
	}
	return p.str(int(binary.BigEndian.Uint16(sig)))
}

func field(f member, p *pool) (facts.FieldDecl, error) {
	desc := f.descriptor
	if sig := signatureOf(f.attrs, p); sig != "" {
		desc = sig
	}
	typ, err := parseFieldSignature(desc)
	if err != nil {
		return facts.FieldDecl{}, err
	}
	return facts.FieldDecl{
		Name:         f.name,
		Type:         typ,
		Modifiers:    facts.Modifiers(f.access),
		EnumConstant: f.access&accEnum != 0,
	}, nil
}

func method(m member, p *pool) (facts.MethodDecl, error) {
	desc := m.descriptor
	if sig := signatureOf(m.attrs, p); sig != "" {
		desc = sig
	}
	ms, err := parseMethodSignature(desc)
	if err != nil {
		return facts.MethodDecl{}, err
	}
	md := facts.MethodDecl{
		Name:        m.name,
		Constructor: m.name == "<init>",
		Initializer: m.name == "<clinit>",
		Params:      ms.params,
		TypeParams:  ms.typeParams,
		Modifiers:   facts.Modifiers(m.access),
		ParamNames:  paramNames(findAttribute(m.attrs, "MethodParameters"), p),
	}
	if !md.Constructor && !md.Initializer {
		md.Return = ms.ret
	}
	return md, nil
}

// paramNames reads a MethodParameters attribute.
func paramNames(data []byte, p *pool) []string {
	if len(data) == 0 {
		return nil
	}
	r := &reader{b: data}
	n := r.u1()
	names := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		names = append(names, p.str(r.u2()))
		r.u2()
	}
	if r.err != nil {
		return nil
	}
	return names
}

type innerInfo struct {
	anonymous bool
	access    int
}

// innerClass finds the InnerClasses entry describing this.
func innerClass(data []byte, p *pool, this string) (innerInfo, bool) {
	if len(data) == 0 {
		return innerInfo{}, false
	}
	r := &reader{b: data}
	n := r.u2()
	for i := 0; i < n && r.err == nil; i++ {
		inner := p.className(r.u2())
		r.u2() // outer_class_info_index
		name := r.u2()
		access := r.u2()
		if inner == this {
			return innerInfo{anonymous: name == 0, access: access}, true
		}
	}
	return innerInfo{}, false
}
