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

package javasrc

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/signature"
)

const accessMask = facts.ModPublic | facts.ModProtected | facts.ModPrivate

// declare appends the TypeDecl of a type declaration node and of every
// type nested in it. outer is the binary name of the enclosing type, ""
// for top-level types; local marks types declared inside a code block.
func (f *file) declare(n *sitter.Node, outer, top string, parent *scope, local bool) {
	name := f.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}

	var fqn string
	switch {
	case outer == "":
		fqn = f.prefix() + name
		top = fqn
	case local:
		f.anon[top]++
		fqn = fmt.Sprintf("%s$%d%s", outer, f.anon[top], name)
	default:
		fqn = outer + "$" + name
	}

	td := facts.TypeDecl{
		FQN:       fqn,
		Package:   f.pkg,
		Member:    outer != "",
		Modifiers: f.modifiers(n),
	}
	f.locate(&td, n)

	switch n.Type() {
	case "interface_declaration":
		td.Kind = facts.TypeInterface
		td.Modifiers |= facts.ModInterface | facts.ModAbstract
	case "enum_declaration":
		td.Kind = facts.TypeEnum
		td.Modifiers |= facts.ModEnum
	case "annotation_type_declaration":
		td.Kind = facts.TypeAnnotation
		td.Modifiers |= facts.ModAnnotation | facts.ModInterface | facts.ModAbstract
	case "record_declaration":
		td.Kind = facts.TypeClass
		td.Modifiers |= facts.ModFinal
	default:
		td.Kind = facts.TypeClass
	}

	sc := newScope(parent)
	td.TypeParams = f.typeParams(n.ChildByFieldName("type_parameters"), sc)
	body := n.ChildByFieldName("body")
	f.registerMembers(body, fqn, sc)

	switch n.Type() {
	case "class_declaration":
		if sup := firstType(n.ChildByFieldName("superclass")); sup != nil {
			td.Superclass = f.typeOf(sup, sc)
		} else if fqn != "java.lang.Object" {
			td.Superclass = signature.Class("java.lang.Object")
		}
		td.Interfaces = f.typeList(n.ChildByFieldName("interfaces"), sc)
	case "record_declaration":
		td.Superclass = signature.Class("java.lang.Record")
		td.Interfaces = f.typeList(n.ChildByFieldName("interfaces"), sc)
	case "enum_declaration":
		td.Superclass = signature.Class("java.lang.Enum", signature.Class(fqn))
		td.Interfaces = f.typeList(n.ChildByFieldName("interfaces"), sc)
	case "interface_declaration":
		td.Interfaces = f.typeList(childOfType(n, "extends_interfaces"), sc)
	case "annotation_type_declaration":
		td.Interfaces = []*signature.Descriptor{signature.Class("java.lang.annotation.Annotation")}
	}
	if outer == "" {
		td.Uses = f.importUses()
	}

	idx := len(f.decls)
	f.decls = append(f.decls, facts.TypeDecl{})

	if n.Type() == "record_declaration" {
		f.recordComponents(n.ChildByFieldName("parameters"), &td, sc)
	}
	f.body(body, &td, top, sc)
	f.defaultConstructor(&td)

	f.decls[idx] = td
}

// declareAnon appends the TypeDecl of an anonymous class body.
func (f *file) declareAnon(n, body *sitter.Node, super *signature.Descriptor, outer, top string, parent *scope) {
	f.anon[top]++
	td := facts.TypeDecl{
		FQN:        fmt.Sprintf("%s$%d", outer, f.anon[top]),
		Kind:       facts.TypeClass,
		Package:    f.pkg,
		Superclass: super,
		Anonymous:  true,
	}
	f.locate(&td, n)

	sc := newScope(parent)
	f.registerMembers(body, td.FQN, sc)

	idx := len(f.decls)
	f.decls = append(f.decls, facts.TypeDecl{})
	f.body(body, &td, top, sc)
	f.decls[idx] = td
}

func (f *file) locate(td *facts.TypeDecl, n *sitter.Node) {
	offset := int(n.StartByte())
	length := int(n.EndByte() - n.StartByte())
	td.Path = f.path
	td.Offset = &offset
	td.Length = &length
}

// registerMembers makes the member types of body visible by simple name.
func (f *file) registerMembers(body *sitter.Node, fqn string, sc *scope) {
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch {
		case isTypeDecl(c.Type()):
			if name := f.text(c.ChildByFieldName("name")); name != "" {
				sc.members[name] = fqn + "$" + name
			}
		case c.Type() == "enum_body_declarations":
			f.registerMembers(c, fqn, sc)
		}
	}
}

// body collects the members of a class, interface, enum or annotation body
// into td and declares the types nested in it.
func (f *file) body(body *sitter.Node, td *facts.TypeDecl, top string, sc *scope) {
	if body == nil {
		return
	}
	iface := td.Kind == facts.TypeInterface || td.Kind == facts.TypeAnnotation

	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "field_declaration", "constant_declaration":
			f.fields(c, td, sc, iface)
			f.scan(c, td.FQN, top, sc)

		case "method_declaration":
			ms := newScope(sc)
			m := f.method(c, ms)
			if iface {
				m.Modifiers = interfaceMethod(m.Modifiers, c.ChildByFieldName("body") != nil)
			}
			td.Methods = append(td.Methods, m)
			f.scan(c.ChildByFieldName("body"), td.FQN, top, ms)

		case "constructor_declaration", "compact_constructor_declaration":
			ms := newScope(sc)
			m := f.method(c, ms)
			m.Name = ""
			m.Constructor = true
			m.Return = nil
			if c.Type() == "compact_constructor_declaration" {
				m.Params, m.ParamNames = recordParams(td)
			}
			td.Methods = append(td.Methods, m)
			f.scan(c.ChildByFieldName("body"), td.FQN, top, ms)

		case "annotation_type_element_declaration":
			ret := arrayOf(f.typeOf(c.ChildByFieldName("type"), sc), f.dims(c.ChildByFieldName("dimensions")))
			td.Methods = append(td.Methods, facts.MethodDecl{
				Name:      f.text(c.ChildByFieldName("name")),
				Return:    ret,
				Modifiers: f.modifiers(c) | facts.ModPublic | facts.ModAbstract,
			})

		case "static_initializer":
			if !hasInitializer(td) {
				td.Methods = append(td.Methods, facts.MethodDecl{
					Name:        "<clinit>",
					Initializer: true,
					Modifiers:   facts.ModStatic,
				})
			}
			f.scan(c, td.FQN, top, sc)

		case "block":
			f.scan(c, td.FQN, top, sc)

		case "enum_constant":
			td.Fields = append(td.Fields, facts.FieldDecl{
				Name:         f.text(c.ChildByFieldName("name")),
				Type:         signature.Class(td.FQN),
				Modifiers:    facts.ModPublic | facts.ModStatic | facts.ModFinal | facts.ModEnum,
				EnumConstant: true,
			})
			f.scan(c.ChildByFieldName("arguments"), td.FQN, top, sc)
			if cb := c.ChildByFieldName("body"); cb != nil {
				f.declareAnon(c, cb, signature.Class(td.FQN), td.FQN, top, sc)
			}

		case "enum_body_declarations":
			f.body(c, td, top, sc)

		default:
			if isTypeDecl(c.Type()) {
				f.declare(c, td.FQN, top, sc, false)
			}
		}
	}
}

// scan declares the anonymous and local classes found in code below n.
func (f *file) scan(n *sitter.Node, outer, top string, sc *scope) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Type() == "object_creation_expression" && childOfType(c, "class_body") != nil:
			// the class body is a positional child, not a field
			f.scan(c.ChildByFieldName("arguments"), outer, top, sc)
			super := f.typeOf(c.ChildByFieldName("type"), sc)
			f.declareAnon(c, childOfType(c, "class_body"), super, outer, top, sc)
		case isTypeDecl(c.Type()):
			f.declare(c, outer, top, sc, true)
		default:
			f.scan(c, outer, top, sc)
		}
	}
}

func (f *file) fields(n *sitter.Node, td *facts.TypeDecl, sc *scope, constant bool) {
	typ := f.typeOf(n.ChildByFieldName("type"), sc)
	mods := f.modifiers(n)
	if constant {
		mods |= facts.ModPublic | facts.ModStatic | facts.ModFinal
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		td.Fields = append(td.Fields, facts.FieldDecl{
			Name:      f.text(d.ChildByFieldName("name")),
			Type:      arrayOf(typ, f.dims(d.ChildByFieldName("dimensions"))),
			Modifiers: mods,
		})
	}
}

// method reads a method or constructor header. Its type parameters are
// declared in sc.
func (f *file) method(n *sitter.Node, sc *scope) facts.MethodDecl {
	m := facts.MethodDecl{
		Name:      f.text(n.ChildByFieldName("name")),
		Modifiers: f.modifiers(n),
	}
	m.TypeParams = f.typeParams(n.ChildByFieldName("type_parameters"), sc)
	if t := n.ChildByFieldName("type"); t != nil {
		m.Return = arrayOf(f.typeOf(t, sc), f.dims(n.ChildByFieldName("dimensions")))
	}
	m.Params, m.ParamNames = f.params(n.ChildByFieldName("parameters"), sc)
	return m
}

func (f *file) params(n *sitter.Node, sc *scope) ([]*signature.Descriptor, []string) {
	if n == nil {
		return nil, nil
	}
	var (
		types []*signature.Descriptor
		names []string
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			t := f.typeOf(p.ChildByFieldName("type"), sc)
			types = append(types, arrayOf(t, f.dims(p.ChildByFieldName("dimensions"))))
			names = append(names, f.text(p.ChildByFieldName("name")))
		case "spread_parameter":
			t := f.typeOf(firstType(p), sc)
			decl := childOfType(p, "variable_declarator")
			dims, name := 1, ""
			if decl != nil {
				dims += f.dims(decl.ChildByFieldName("dimensions"))
				name = f.text(decl.ChildByFieldName("name"))
			}
			types = append(types, arrayOf(t, dims))
			names = append(names, name)
		}
	}
	return types, names
}

// recordComponents adds the private fields and the canonical constructor
// of a record.
func (f *file) recordComponents(n *sitter.Node, td *facts.TypeDecl, sc *scope) {
	types, names := f.params(n, sc)
	for i, t := range types {
		td.Fields = append(td.Fields, facts.FieldDecl{Name: names[i], Type: t, Modifiers: facts.ModPrivate | facts.ModFinal})
	}
}

func recordParams(td *facts.TypeDecl) ([]*signature.Descriptor, []string) {
	var (
		types []*signature.Descriptor
		names []string
	)
	for _, fd := range td.Fields {
		if fd.Modifiers.Has(facts.ModPrivate|facts.ModFinal) && !fd.Modifiers.Has(facts.ModStatic) {
			types = append(types, fd.Type)
			names = append(names, fd.Name)
		}
	}
	return types, names
}

// defaultConstructor adds the constructor the compiler would generate for
// a class, record or enum that declares none.
func (f *file) defaultConstructor(td *facts.TypeDecl) {
	if td.Kind != facts.TypeClass && td.Kind != facts.TypeEnum {
		return
	}
	for _, m := range td.Methods {
		if m.Constructor {
			return
		}
	}
	ctor := facts.MethodDecl{Constructor: true}
	switch {
	case td.Kind == facts.TypeEnum:
		ctor.Modifiers = facts.ModPrivate
	case td.Anonymous:
		return
	default:
		ctor.Modifiers = td.Modifiers & accessMask
	}
	if td.Superclass != nil && td.Superclass.Name == "java.lang.Record" {
		ctor.Params, ctor.ParamNames = recordParams(td)
	}
	td.Methods = append(td.Methods, ctor)
}

func hasInitializer(td *facts.TypeDecl) bool {
	for _, m := range td.Methods {
		if m.Initializer {
			return true
		}
	}
	return false
}

// interfaceMethod applies the implicit modifiers of interface methods.
func interfaceMethod(mods facts.Modifiers, hasBody bool) facts.Modifiers {
	if !mods.Has(facts.ModPrivate) {
		mods |= facts.ModPublic
	}
	if !hasBody {
		mods |= facts.ModAbstract
	}
	return mods
}

func (f *file) modifiers(n *sitter.Node) facts.Modifiers {
	var mods facts.Modifiers
	m := childOfType(n, "modifiers")
	if m == nil {
		return 0
	}
	for i := 0; i < int(m.ChildCount()); i++ {
		mods |= facts.ModifierFromKeyword(m.Child(i).Type())
	}
	return mods
}

func (f *file) typeParams(n *sitter.Node, sc *scope) []signature.TypeParam {
	if n == nil {
		return nil
	}
	var nodes []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		tp := n.NamedChild(i)
		if tp.Type() != "type_parameter" {
			continue
		}
		nodes = append(nodes, tp)
		sc.typeVars[f.typeParamName(tp)] = true
	}

	out := make([]signature.TypeParam, 0, len(nodes))
	for _, tp := range nodes {
		p := signature.TypeParam{Name: f.typeParamName(tp)}
		if bound := childOfType(tp, "type_bound"); bound != nil {
			for i := 0; i < int(bound.NamedChildCount()); i++ {
				if b := bound.NamedChild(i); isTypeNode(b.Type()) {
					p.Bounds = append(p.Bounds, f.typeOf(b, sc))
				}
			}
		}
		out = append(out, p)
	}
	return out
}

func (f *file) typeParamName(tp *sitter.Node) string {
	if id := childOfType(tp, "type_identifier"); id != nil {
		return f.text(id)
	}
	return f.text(childOfType(tp, "identifier"))
}

// typeList reads the types of a super_interfaces or extends_interfaces
// node.
func (f *file) typeList(n *sitter.Node, sc *scope) []*signature.Descriptor {
	if n == nil {
		return nil
	}
	if list := childOfType(n, "type_list"); list != nil {
		n = list
	}
	var out []*signature.Descriptor
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); isTypeNode(c.Type()) {
			if d := f.typeOf(c, sc); d != nil {
				out = append(out, d)
			}
		}
	}
	return out
}

// typeOf converts a type node into a descriptor. It returns nil for nodes
// that are not types.
func (f *file) typeOf(n *sitter.Node, sc *scope) *signature.Descriptor {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return signature.Primitive(f.text(n))
	case "type_identifier", "scoped_type_identifier":
		return f.resolve(f.text(n), sc)
	case "generic_type":
		var (
			base *signature.Descriptor
			args []*signature.Descriptor
		)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "type_identifier", "scoped_type_identifier":
				base = f.typeOf(c, sc)
			case "type_arguments":
				args = f.typeArgs(c, sc)
			}
		}
		if base == nil || base.Kind != signature.KindClass {
			return base
		}
		base.Args = args
		return base
	case "array_type":
		return arrayOf(f.typeOf(n.ChildByFieldName("element"), sc), f.dims(n.ChildByFieldName("dimensions")))
	case "annotated_type":
		return f.typeOf(lastType(n), sc)
	case "wildcard":
		return f.wildcard(n, sc)
	}
	return nil
}

func (f *file) typeArgs(n *sitter.Node, sc *scope) []*signature.Descriptor {
	var out []*signature.Descriptor
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "wildcard" || isTypeNode(c.Type()) {
			out = append(out, f.typeOf(c, sc))
		}
	}
	return out
}

func (f *file) wildcard(n *sitter.Node, sc *scope) *signature.Descriptor {
	var (
		dir   string
		bound *sitter.Node
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c.Type() == "extends" || c.Type() == "super":
			dir = c.Type()
		case c.IsNamed() && isTypeNode(c.Type()):
			bound = c
		}
	}
	switch dir {
	case "extends":
		return signature.WildcardExtends(f.typeOf(bound, sc))
	case "super":
		return signature.WildcardSuper(f.typeOf(bound, sc))
	default:
		return signature.Wildcard()
	}
}

// dims counts the bracket pairs of a dimensions node.
func (f *file) dims(n *sitter.Node) int {
	return strings.Count(f.text(n), "[")
}
