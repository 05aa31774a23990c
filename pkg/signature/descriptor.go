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

// Kind identifies the shape of a type descriptor.
type Kind int

const (
	// KindInvalid is the zero value and never produced by the constructors.
	KindInvalid Kind = iota
	KindClass
	KindArray
	KindPrimitive
	KindTypeVariable
	KindWildcard
	// KindCapture is a compiler capture type. It has no canonical name.
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindArray:
		return "array"
	case KindPrimitive:
		return "primitive"
	case KindTypeVariable:
		return "type-variable"
	case KindWildcard:
		return "wildcard"
	case KindCapture:
		return "capture"
	default:
		return "invalid"
	}
}

// WildcardBound is the bound direction of a wildcard descriptor.
type WildcardBound int

const (
	BoundNone WildcardBound = iota
	BoundExtends
	BoundSuper
)

// Descriptor is a structured type reference as emitted by a front end.
//
// Only the fields relevant to Kind are read:
//   - KindClass: Name (binary name, '.' or '/' package separators, '$' nesting) and Args
//   - KindArray: Elem and Dims
//   - KindPrimitive, KindTypeVariable: Name
//   - KindWildcard: Bound and Elem (the bound type, nil for BoundNone)
//   - KindCapture: Elem (the captured wildcard, informational only)
type Descriptor struct {
	Kind  Kind
	Name  string
	Elem  *Descriptor
	Dims  int
	Args  []*Descriptor
	Bound WildcardBound
}

// Class returns a class descriptor, optionally parameterized.
func Class(name string, args ...*Descriptor) *Descriptor {
	return &Descriptor{Kind: KindClass, Name: name, Args: args}
}

// Array returns an array descriptor of dims dimensions. An array of arrays
// is flattened so the dimension counts add up.
func Array(elem *Descriptor, dims int) *Descriptor {
	if elem != nil && elem.Kind == KindArray {
		return &Descriptor{Kind: KindArray, Elem: elem.Elem, Dims: elem.Dims + dims}
	}
	return &Descriptor{Kind: KindArray, Elem: elem, Dims: dims}
}

// Primitive returns a base type descriptor such as int or void.
func Primitive(name string) *Descriptor {
	return &Descriptor{Kind: KindPrimitive, Name: name}
}

// TypeVar returns a type variable descriptor.
func TypeVar(name string) *Descriptor {
	return &Descriptor{Kind: KindTypeVariable, Name: name}
}

// Wildcard returns the unbounded wildcard.
func Wildcard() *Descriptor {
	return &Descriptor{Kind: KindWildcard, Bound: BoundNone}
}

// WildcardExtends returns "? extends bound".
func WildcardExtends(bound *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindWildcard, Bound: BoundExtends, Elem: bound}
}

// WildcardSuper returns "? super bound".
func WildcardSuper(bound *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindWildcard, Bound: BoundSuper, Elem: bound}
}

// Capture returns a capture-of descriptor.
func Capture(of *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindCapture, Elem: of}
}

// TypeParam is a declared type parameter with its bounds.
type TypeParam struct {
	Name   string
	Bounds []*Descriptor
}

var primitives = map[string]bool{
	"boolean": true,
	"byte":    true,
	"char":    true,
	"short":   true,
	"int":     true,
	"long":    true,
	"float":   true,
	"double":  true,
	"void":    true,
}

// IsPrimitive reports whether name is a Java base type name.
func IsPrimitive(name string) bool {
	return primitives[name]
}
