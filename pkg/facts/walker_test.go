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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sig "github.com/kraklabs/factbase/pkg/signature"
)

type recordingSink struct {
	entities   []Entity
	relations  []Relation
	parameters []Parameter
	files      []FileFact
	failOn     RelationKind
}

func (s *recordingSink) Entity(e Entity) error {
	s.entities = append(s.entities, e)
	return nil
}

func (s *recordingSink) Relation(r Relation) error {
	if s.failOn != "" && r.Kind == s.failOn {
		return errors.New("sink full")
	}
	s.relations = append(s.relations, r)
	return nil
}

func (s *recordingSink) Parameter(p Parameter) error {
	s.parameters = append(s.parameters, p)
	return nil
}

func (s *recordingSink) File(f FileFact) error {
	s.files = append(s.files, f)
	return nil
}

func (s *recordingSink) entity(key string) (Entity, bool) {
	for _, e := range s.entities {
		if e.Key() == key {
			return e, true
		}
	}
	return Entity{}, false
}

func (s *recordingSink) targets(kind RelationKind, source string) []string {
	var out []string
	for _, r := range s.relations {
		if r.Kind == kind && r.Source == source {
			out = append(out, r.Target)
		}
	}
	return out
}

func sampleClass() TypeDecl {
	str := sig.Class("java.lang.String")
	return TypeDecl{
		FQN:        "com.acme.Box",
		Kind:       TypeClass,
		Modifiers:  ModPublic,
		Package:    "com.acme",
		Superclass: sig.Class("java.lang.Object"),
		Interfaces: []*sig.Descriptor{sig.Class("java.lang.Comparable", sig.TypeVar("T"))},
		TypeParams: []sig.TypeParam{{Name: "T", Bounds: []*sig.Descriptor{sig.Class("java.lang.Number")}}},
		Fields: []FieldDecl{
			{Name: "value", Type: sig.TypeVar("T"), Modifiers: ModPrivate},
			{Name: "this$0", Type: str, Modifiers: ModSynthetic},
		},
		Methods: []MethodDecl{
			{Name: "Box", Constructor: true, Params: []*sig.Descriptor{sig.TypeVar("T")}, Modifiers: ModPublic},
			{Name: "get", Return: sig.TypeVar("T"), Modifiers: ModPublic},
			{Name: "put", Params: []*sig.Descriptor{sig.Array(str, 2), sig.Primitive("int")}, Return: sig.Primitive("void")},
			{Name: "access$000", Params: []*sig.Descriptor{str}, Modifiers: ModSynthetic | ModStatic},
			{Name: "map", Return: sig.Class("java.util.List", sig.TypeVar("R")), TypeParams: []sig.TypeParam{{Name: "R"}}},
		},
		Path: "com/acme/Box.java",
	}
}

func TestWalker_TopLevelClass(t *testing.T) {
	sink := &recordingSink{}
	w := NewWalker(sink, nil)
	require.NoError(t, w.Walk(sampleClass()))

	pkg, ok := sink.entity("com.acme")
	require.True(t, ok)
	assert.Equal(t, EntityPackage, pkg.Kind)

	cls, ok := sink.entity("com.acme.Box")
	require.True(t, ok)
	assert.Equal(t, EntityClass, cls.Kind)
	assert.Equal(t, "com/acme/Box.java", cls.Location.Path)

	assert.Equal(t, []string{"com.acme"}, sink.targets(RelationInside, "com.acme.Box"))
	assert.Equal(t, []string{"java.lang.Object"}, sink.targets(RelationExtends, "com.acme.Box"))
	assert.Equal(t, []string{"java.lang.Comparable<<T>>"}, sink.targets(RelationImplements, "com.acme.Box"))
	assert.Equal(t, []string{"<T+java.lang.Number>"}, sink.targets(RelationParametrizedBy, "com.acme.Box"))
}

func TestWalker_Fields(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, NewWalker(sink, nil).Walk(sampleClass()))

	f, ok := sink.entity("com.acme.Box.value")
	require.True(t, ok)
	assert.Equal(t, EntityField, f.Kind)
	assert.Equal(t, "com.acme.Box", f.Location.FQN)
	assert.Equal(t, []string{"com.acme.Box"}, sink.targets(RelationInside, "com.acme.Box.value"))
	assert.Equal(t, []string{"<T>"}, sink.targets(RelationHolds, "com.acme.Box.value"))

	_, ok = sink.entity("com.acme.Box.this$0")
	assert.False(t, ok, "synthetic field must be skipped")
}

func TestWalker_Executables(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, NewWalker(sink, nil).Walk(sampleClass()))

	ctor, ok := sink.entity("com.acme.Box.<init>(<T>)")
	require.True(t, ok)
	assert.Equal(t, EntityConstructor, ctor.Kind)
	assert.Equal(t, "com.acme.Box.<init>", ctor.FQN)
	assert.Equal(t, "(<T>)", ctor.Params)
	assert.Equal(t, []string{"void"}, sink.targets(RelationReturns, "com.acme.Box.<init>(<T>)"))

	put, ok := sink.entity("com.acme.Box.put(java.lang.String[][],int)")
	require.True(t, ok)
	assert.Equal(t, EntityMethod, put.Kind)
	assert.Equal(t, []string{"com.acme.Box"}, sink.targets(RelationInside, "com.acme.Box.put(java.lang.String[][],int)"))

	var putParams []Parameter
	for _, p := range sink.parameters {
		if p.Owner == "com.acme.Box.put(java.lang.String[][],int)" {
			putParams = append(putParams, p)
		}
	}
	require.Len(t, putParams, 2)
	assert.Equal(t, "arg0", putParams[0].Name)
	assert.Equal(t, "java.lang.String[][]", putParams[0].Type)
	assert.Equal(t, 1, putParams[1].Position)
	assert.Equal(t, "int", putParams[1].Type)

	assert.Equal(t, []string{"<R>"}, sink.targets(RelationParametrizedBy, "com.acme.Box.map()"))
	assert.Equal(t, []string{"java.util.List<<R>>"}, sink.targets(RelationReturns, "com.acme.Box.map()"))

	_, ok = sink.entity("com.acme.Box.access$000(java.lang.String)")
	assert.False(t, ok, "synthetic method must be skipped")
}

func TestWalker_SyntheticDefaultConstructorKept(t *testing.T) {
	sink := &recordingSink{}
	td := TypeDecl{
		FQN:     "p.Empty",
		Package: "p",
		Methods: []MethodDecl{
			{Name: "Empty", Constructor: true, Modifiers: ModSynthetic},
			{Name: "Empty", Constructor: true, Params: []*sig.Descriptor{sig.Primitive("int")}, Modifiers: ModSynthetic},
		},
	}
	require.NoError(t, NewWalker(sink, nil).Walk(td))

	_, ok := sink.entity("p.Empty.<init>()")
	assert.True(t, ok)
	_, ok = sink.entity("p.Empty.<init>(int)")
	assert.False(t, ok)
}

func TestWalker_KindsByDeclaration(t *testing.T) {
	sink := &recordingSink{}
	w := NewWalker(sink, nil)

	require.NoError(t, w.Walk(TypeDecl{
		FQN: "p.Marker", Kind: TypeAnnotation, Package: "p",
		Methods: []MethodDecl{{Name: "value", Return: sig.Class("java.lang.String")}},
	}))
	require.NoError(t, w.Walk(TypeDecl{
		FQN: "p.Color", Kind: TypeEnum, Package: "p",
		Superclass: sig.Class("java.lang.Enum", sig.Class("p.Color")),
		Fields:     []FieldDecl{{Name: "RED", Type: sig.Class("p.Color"), EnumConstant: true}},
		Methods:    []MethodDecl{{Name: "<clinit>", Initializer: true, Modifiers: ModStatic}},
	}))
	require.NoError(t, w.Walk(TypeDecl{
		FQN: "p.Shape", Kind: TypeInterface, Package: "p",
		Interfaces: []*sig.Descriptor{sig.Class("java.io.Serializable")},
	}))

	el, _ := sink.entity("p.Marker.value()")
	assert.Equal(t, EntityAnnotationElement, el.Kind)
	red, _ := sink.entity("p.Color.RED")
	assert.Equal(t, EntityEnumConstant, red.Kind)
	clinit, _ := sink.entity("p.Color.<clinit>()")
	assert.Equal(t, EntityInitializer, clinit.Kind)
	shape, _ := sink.entity("p.Shape")
	assert.Equal(t, EntityInterface, shape.Kind)

	// EXTENDS is only emitted for classes.
	assert.Empty(t, sink.targets(RelationExtends, "p.Color"))
	assert.Equal(t, []string{"java.io.Serializable"}, sink.targets(RelationImplements, "p.Shape"))

	// One PACKAGE entity per unit.
	n := 0
	for _, e := range sink.entities {
		if e.Kind == EntityPackage {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestWalker_AnonymousAndMemberTypes(t *testing.T) {
	sink := &recordingSink{}
	w := NewWalker(sink, nil)
	require.NoError(t, w.Walk(TypeDecl{FQN: "p.Outer$1", Package: "p", Anonymous: true}))
	require.NoError(t, w.Walk(TypeDecl{FQN: "p.Outer$Inner$Deep", Package: "p", Member: true}))

	assert.Equal(t, []string{"p.Outer"}, sink.targets(RelationInside, "p.Outer$1"))
	assert.Equal(t, []string{"p.Outer$Inner"}, sink.targets(RelationInside, "p.Outer$Inner$Deep"))
	for _, e := range sink.entities {
		assert.NotEqual(t, EntityPackage, e.Kind, "nested types emit no PACKAGE entity")
	}
}

func TestWalker_DescriptorFailureDropsOnlyTheFact(t *testing.T) {
	sink := &recordingSink{}
	w := NewWalker(sink, nil)
	td := TypeDecl{
		FQN:     "p.C",
		Package: "p",
		Fields:  []FieldDecl{{Name: "f", Type: sig.Capture(sig.Wildcard())}},
		Methods: []MethodDecl{{Name: "m", Params: []*sig.Descriptor{sig.Capture(nil), sig.Primitive("int")}}},
	}
	require.NoError(t, w.Walk(td))

	_, ok := sink.entity("p.C.f")
	assert.True(t, ok)
	assert.Empty(t, sink.targets(RelationHolds, "p.C.f"))

	m, ok := sink.entity("p.C.m(?,int)")
	require.True(t, ok)
	assert.Equal(t, "(?,int)", m.Params)
	require.Len(t, sink.parameters, 1)
	assert.Equal(t, 1, sink.parameters[0].Position)
	assert.Equal(t, 2, w.Skipped())
}

func TestWalker_SinkErrorPropagates(t *testing.T) {
	sink := &recordingSink{failOn: RelationHolds}
	err := NewWalker(sink, nil).Walk(sampleClass())
	assert.Error(t, err)

	assert.Error(t, NewWalker(&recordingSink{}, nil).Walk(TypeDecl{}))
}

func TestFQNStack(t *testing.T) {
	var s FQNStack
	assert.Equal(t, "", s.Peek())
	assert.Equal(t, "", s.Pop())
	s.Push("a")
	s.Push("a$B")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "a$B", s.Pop())
	assert.Equal(t, "a", s.Peek())
}

func TestEnclosingName(t *testing.T) {
	assert.Equal(t, "a.Outer$Inner", EnclosingName("a.Outer$Inner$1"))
	assert.Equal(t, "", EnclosingName("a.Outer"))
	assert.Equal(t, "", EnclosingName("$Weird"))
}
