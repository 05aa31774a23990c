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

package facts

import "github.com/kraklabs/factbase/pkg/signature"

// Location is where a fact came from.
type Location struct {
	// FQN of the enclosing type.
	FQN    string `json:"fqn"`
	Path   string `json:"path,omitempty"`
	Offset *int   `json:"offset,omitempty"`
	Length *int   `json:"length,omitempty"`
}

// Entity is one extracted declaration.
type Entity struct {
	Kind EntityKind `json:"kind"`
	FQN  string     `json:"fqn"`
	// Params is the parenthesized parameter list of executables, e.g.
	// "(int,java.lang.String)". Empty for every other kind.
	Params    string    `json:"params,omitempty"`
	Modifiers Modifiers `json:"modifiers"`
	Location  Location  `json:"location"`
}

// Key is the referential name: FQN followed by Params.
func (e Entity) Key() string {
	return e.FQN + e.Params
}

// Relation is a directed typed edge between canonical names. Source and
// Target are names, never resolved ids.
type Relation struct {
	Kind     RelationKind `json:"kind"`
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Location Location     `json:"location"`
}

// Parameter is the per-argument record of an executable.
type Parameter struct {
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Type      string    `json:"type"`
	Owner     string    `json:"owner"`
	Modifiers Modifiers `json:"modifiers"`
	Location  Location  `json:"location"`
}

// FileKind is the kind of a file fact.
type FileKind string

const (
	FileSource FileKind = "SOURCE"
	FileClass  FileKind = "CLASS"
	FileJar    FileKind = "JAR"
)

// FileFact records one file of a unit. For JAR files Hash is the jar's
// content fingerprint.
type FileFact struct {
	Kind FileKind `json:"kind"`
	Name string   `json:"name"`
	Path string   `json:"path,omitempty"`
	Hash string   `json:"hash,omitempty"`
}

// UsedJar records a jar on a project's classpath, keyed by its hash.
type UsedJar struct {
	Hash string `json:"hash"`
}

// TypeKind distinguishes the four Java type declarations.
type TypeKind int

const (
	TypeClass TypeKind = iota
	TypeInterface
	TypeEnum
	TypeAnnotation
)

func (k TypeKind) entityKind() EntityKind {
	switch k {
	case TypeInterface:
		return EntityInterface
	case TypeEnum:
		return EntityEnum
	case TypeAnnotation:
		return EntityAnnotation
	default:
		return EntityClass
	}
}

// TypeDecl is one type declaration as produced by a front end. Nested and
// anonymous types are separate TypeDecls whose FQN uses '$' separators.
type TypeDecl struct {
	FQN        string
	Kind       TypeKind
	Modifiers  Modifiers
	Package    string
	Superclass *signature.Descriptor
	Interfaces []*signature.Descriptor
	TypeParams []signature.TypeParam
	Fields     []FieldDecl
	Methods    []MethodDecl
	// Uses lists types referenced by the declaration outside its members,
	// typically resolved imports.
	Uses      []*signature.Descriptor
	Anonymous bool
	Member    bool
	Path      string
	Offset    *int
	Length    *int
}

// FieldDecl is a field or enum constant.
type FieldDecl struct {
	Name         string
	Type         *signature.Descriptor
	Modifiers    Modifiers
	EnumConstant bool
}

// MethodDecl is a method, constructor or initializer.
type MethodDecl struct {
	Name        string
	Constructor bool
	Initializer bool
	Params      []*signature.Descriptor
	// ParamNames is optional; missing names default to argN.
	ParamNames []string
	// Return is nil for constructors and initializers.
	Return     *signature.Descriptor
	TypeParams []signature.TypeParam
	Modifiers  Modifiers
}
