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
	"fmt"
	"log/slog"
	"strings"

	"github.com/kraklabs/factbase/pkg/signature"
)

// Sink receives the facts produced by a Walker.
type Sink interface {
	Entity(Entity) error
	Relation(Relation) error
	Parameter(Parameter) error
	File(FileFact) error
}

// Walker turns type declarations into entity, relation and parameter facts.
// One Walker serves one unit: it remembers which PACKAGE entities it has
// already emitted.
type Walker struct {
	sink     Sink
	logger   *slog.Logger
	packages map[string]bool
	skipped  int
}

// NewWalker creates a walker writing to sink.
func NewWalker(sink Sink, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		sink:     sink,
		logger:   logger,
		packages: make(map[string]bool),
	}
}

// Skipped returns how many relations or parameters were dropped because a
// descriptor could not be canonicalized.
func (w *Walker) Skipped() int {
	return w.skipped
}

// Walk emits the facts of one type declaration. Only sink errors are
// returned; descriptor failures are logged and the affected fact dropped.
func (w *Walker) Walk(td TypeDecl) error {
	if td.FQN == "" {
		return fmt.Errorf("walk: type declaration without name")
	}
	var stack FQNStack
	return w.walkType(&stack, td)
}

func (w *Walker) walkType(stack *FQNStack, td TypeDecl) error {
	loc := Location{FQN: td.FQN, Path: td.Path, Offset: td.Offset, Length: td.Length}

	switch {
	case td.Anonymous || td.Member:
		if outer := EnclosingName(td.FQN); outer != "" {
			if err := w.relation(RelationInside, td.FQN, outer, loc); err != nil {
				return err
			}
		}
	case td.Package != "":
		if err := w.relation(RelationInside, td.FQN, td.Package, loc); err != nil {
			return err
		}
		if !w.packages[td.Package] {
			w.packages[td.Package] = true
			if err := w.sink.Entity(Entity{Kind: EntityPackage, FQN: td.Package}); err != nil {
				return err
			}
		}
	}

	kind := td.Kind.entityKind()
	if err := w.sink.Entity(Entity{Kind: kind, FQN: td.FQN, Modifiers: td.Modifiers, Location: loc}); err != nil {
		return err
	}
	if kind == EntityClass && td.Superclass != nil {
		if err := w.typeRelation(RelationExtends, td.FQN, td.Superclass, loc); err != nil {
			return err
		}
	}
	for _, iface := range td.Interfaces {
		if err := w.typeRelation(RelationImplements, td.FQN, iface, loc); err != nil {
			return err
		}
	}
	for _, used := range td.Uses {
		if err := w.typeRelation(RelationUses, td.FQN, used, loc); err != nil {
			return err
		}
	}

	stack.Push(td.FQN)
	defer stack.Pop()

	for _, f := range td.Fields {
		if f.Modifiers.Has(ModSynthetic) {
			continue
		}
		if err := w.walkField(stack, f, loc.Path); err != nil {
			return err
		}
	}
	for _, m := range td.Methods {
		if m.Modifiers.Has(ModSynthetic) && !(m.Constructor && len(m.Params) == 0) {
			continue
		}
		if err := w.walkMethod(stack, m, kind == EntityAnnotation, loc.Path); err != nil {
			return err
		}
	}
	for _, tp := range td.TypeParams {
		if err := w.typeParam(td.FQN, tp, loc); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) walkField(stack *FQNStack, f FieldDecl, path string) error {
	owner := stack.Peek()
	loc := Location{FQN: owner, Path: path}
	fqn := owner + "." + f.Name

	kind := EntityField
	if f.EnumConstant {
		kind = EntityEnumConstant
	}
	if err := w.sink.Entity(Entity{Kind: kind, FQN: fqn, Modifiers: f.Modifiers, Location: loc}); err != nil {
		return err
	}
	if err := w.relation(RelationInside, fqn, owner, loc); err != nil {
		return err
	}
	return w.typeRelation(RelationHolds, fqn, f.Type, loc)
}

func (w *Walker) walkMethod(stack *FQNStack, m MethodDecl, annotationElement bool, path string) error {
	owner := stack.Peek()
	loc := Location{FQN: owner, Path: path}

	name := m.Name
	switch {
	case m.Constructor:
		name = "<init>"
	case m.Initializer:
		name = "<clinit>"
	}
	basic := owner + "." + name

	paramTypes := make([]string, len(m.Params))
	ok := make([]bool, len(m.Params))
	for i, p := range m.Params {
		s, err := signature.Canonicalize(p)
		if err != nil {
			w.skip("param", basic, err)
			s = "?"
		} else {
			ok[i] = true
		}
		paramTypes[i] = s
	}
	params := "(" + strings.Join(paramTypes, ",") + ")"
	referential := basic + params

	var kind EntityKind
	switch {
	case annotationElement:
		kind = EntityAnnotationElement
	case m.Constructor:
		kind = EntityConstructor
	case m.Initializer || m.Name == "<clinit>":
		kind = EntityInitializer
	default:
		kind = EntityMethod
	}
	if err := w.sink.Entity(Entity{Kind: kind, FQN: basic, Params: params, Modifiers: m.Modifiers, Location: loc}); err != nil {
		return err
	}
	if err := w.relation(RelationInside, referential, owner, loc); err != nil {
		return err
	}

	ret := m.Return
	if ret == nil {
		ret = signature.Primitive("void")
	}
	if err := w.typeRelation(RelationReturns, referential, ret, loc); err != nil {
		return err
	}

	for i := range m.Params {
		if !ok[i] {
			continue
		}
		pname := fmt.Sprintf("arg%d", i)
		if i < len(m.ParamNames) && m.ParamNames[i] != "" {
			pname = m.ParamNames[i]
		}
		p := Parameter{Name: pname, Position: i, Type: paramTypes[i], Owner: referential, Location: loc}
		if err := w.sink.Parameter(p); err != nil {
			return err
		}
	}

	for _, tp := range m.TypeParams {
		if err := w.typeParam(referential, tp, loc); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) relation(kind RelationKind, source, target string, loc Location) error {
	return w.sink.Relation(Relation{Kind: kind, Source: source, Target: target, Location: loc})
}

func (w *Walker) typeRelation(kind RelationKind, source string, d *signature.Descriptor, loc Location) error {
	target, err := signature.Canonicalize(d)
	if err != nil {
		w.skip(string(kind), source, err)
		return nil
	}
	return w.relation(kind, source, target, loc)
}

func (w *Walker) typeParam(source string, tp signature.TypeParam, loc Location) error {
	target, err := signature.RenderTypeParam(tp)
	if err != nil {
		w.skip(string(RelationParametrizedBy), source, err)
		return nil
	}
	return w.relation(RelationParametrizedBy, source, target, loc)
}

func (w *Walker) skip(what, source string, err error) {
	w.skipped++
	w.logger.Warn("facts.walk.descriptor.skip", "fact", what, "source", source, "err", err)
}

// EnclosingName returns the part of a binary name before its last '$', or
// "" when the name is not nested.
func EnclosingName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '$'); i > 0 {
		return fqn[:i]
	}
	return ""
}
