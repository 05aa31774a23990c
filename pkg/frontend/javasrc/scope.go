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
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/signature"
)

// javaLang lists the java.lang types referenced by simple name without an
// import.
var javaLang = map[string]bool{
	"Appendable": true, "ArithmeticException": true, "ArrayIndexOutOfBoundsException": true,
	"AutoCloseable": true, "Boolean": true, "Byte": true, "CharSequence": true,
	"Character": true, "Class": true, "ClassCastException": true, "ClassLoader": true,
	"CloneNotSupportedException": true, "Cloneable": true, "Comparable": true,
	"Deprecated": true, "Double": true, "Enum": true, "Error": true, "Exception": true,
	"Float": true, "FunctionalInterface": true, "IllegalArgumentException": true,
	"IllegalStateException": true, "IndexOutOfBoundsException": true, "Integer": true,
	"InterruptedException": true, "Iterable": true, "Long": true, "Math": true,
	"Module": true, "NullPointerException": true, "Number": true,
	"NumberFormatException": true, "Object": true, "Override": true, "Package": true,
	"Process": true, "Readable": true, "Record": true, "Runnable": true, "Runtime": true,
	"RuntimeException": true, "SafeVarargs": true, "SecurityException": true,
	"Short": true, "StackTraceElement": true, "StrictMath": true, "String": true,
	"StringBuffer": true, "StringBuilder": true, "SuppressWarnings": true,
	"System": true, "Thread": true, "ThreadLocal": true, "Throwable": true,
	"UnsupportedOperationException": true, "Void": true,
}

// scope holds the names visible inside a type or method body.
type scope struct {
	parent   *scope
	typeVars map[string]bool
	// members maps the simple name of a member type to its binary name.
	members map[string]string
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, typeVars: make(map[string]bool), members: make(map[string]string)}
}

func (s *scope) isTypeVar(name string) bool {
	for ; s != nil; s = s.parent {
		if s.typeVars[name] {
			return true
		}
		// A member type shadows type variables of enclosing scopes.
		if _, ok := s.members[name]; ok {
			return false
		}
	}
	return false
}

func (s *scope) member(name string) (string, bool) {
	for ; s != nil; s = s.parent {
		if bin, ok := s.members[name]; ok {
			return bin, true
		}
	}
	return "", false
}

// file is the parse state of one compilation unit.
type file struct {
	src  []byte
	path string
	pkg  string

	imports  map[string]string
	imported []string
	topLevel map[string]bool

	// anon numbers anonymous and local classes per top-level type.
	anon  map[string]int
	decls []facts.TypeDecl
}

func newFile(path string, src []byte) *file {
	return &file{
		src:      src,
		path:     path,
		imports:  make(map[string]string),
		topLevel: make(map[string]bool),
		anon:     make(map[string]int),
	}
}

func (f *file) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.src)
}

func (f *file) prefix() string {
	if f.pkg == "" {
		return ""
	}
	return f.pkg + "."
}

// header records the package, the single-type imports and the names of
// the top-level types.
func (f *file) header(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch t := n.Type(); {
		case t == "package_declaration":
			if name := childOfType(n, "scoped_identifier"); name != nil {
				f.pkg = f.text(name)
			} else {
				f.pkg = f.text(childOfType(n, "identifier"))
			}
		case t == "import_declaration":
			f.addImport(n)
		case isTypeDecl(t):
			f.topLevel[f.text(n.ChildByFieldName("name"))] = true
		}
	}
}

func (f *file) addImport(n *sitter.Node) {
	if childOfType(n, "static") != nil || childOfType(n, "asterisk") != nil {
		return
	}
	name := childOfType(n, "scoped_identifier")
	if name == nil {
		return
	}
	fqn := compact(f.text(name))
	simple := fqn[strings.LastIndexByte(fqn, '.')+1:]
	if _, dup := f.imports[simple]; dup {
		return
	}
	f.imports[simple] = fqn
	f.imported = append(f.imported, fqn)
}

// importUses returns the single-type imports as class descriptors.
func (f *file) importUses() []*signature.Descriptor {
	if len(f.imported) == 0 {
		return nil
	}
	out := make([]*signature.Descriptor, len(f.imported))
	for i, fqn := range f.imported {
		out[i] = signature.Class(fqn)
	}
	return out
}

// resolve turns a type name as written in source into a descriptor.
func (f *file) resolve(name string, sc *scope) *signature.Descriptor {
	name = compact(name)
	if !strings.Contains(name, ".") && sc.isTypeVar(name) {
		return signature.TypeVar(name)
	}
	return signature.Class(f.qualify(name, sc))
}

// qualify finds the binary name of a possibly dotted type name. Lookup
// order: member types of enclosing scopes, types of this file, single-type
// imports, java.lang, fully qualified names, and finally the current
// package. Types brought in by on-demand imports therefore come out
// package-relative.
func (f *file) qualify(name string, sc *scope) string {
	first, rest, dotted := strings.Cut(name, ".")
	nest := func(outer string) string {
		if !dotted {
			return outer
		}
		return outer + "$" + strings.ReplaceAll(rest, ".", "$")
	}

	if bin, ok := sc.member(first); ok {
		return nest(bin)
	}
	if f.topLevel[first] {
		return nest(f.prefix() + first)
	}
	if fqn, ok := f.imports[first]; ok {
		return nest(fqn)
	}
	if !dotted && javaLang[first] {
		return "java.lang." + first
	}
	if dotted && startsLower(first) {
		return name
	}
	return nest(f.prefix() + first)
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

// compact drops whitespace and the generic arguments embedded in a
// qualified name such as Outer<T>.Inner.
func compact(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth > 0, unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
