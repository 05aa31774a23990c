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
	"strings"
)

// EntityKind is the kind of a declaration fact.
type EntityKind string

const (
	EntityPackage           EntityKind = "PACKAGE"
	EntityClass             EntityKind = "CLASS"
	EntityInterface         EntityKind = "INTERFACE"
	EntityAnnotation        EntityKind = "ANNOTATION"
	EntityEnum              EntityKind = "ENUM"
	EntityEnumConstant      EntityKind = "ENUM_CONSTANT"
	EntityField             EntityKind = "FIELD"
	EntityMethod            EntityKind = "METHOD"
	EntityConstructor       EntityKind = "CONSTRUCTOR"
	EntityAnnotationElement EntityKind = "ANNOTATION_ELEMENT"
	EntityInitializer       EntityKind = "INITIALIZER"

	// EntityUnknown marks placeholder rows standing in for relation targets
	// that were never extracted.
	EntityUnknown EntityKind = "UNKNOWN"
)

var entityKinds = []EntityKind{
	EntityPackage, EntityClass, EntityInterface, EntityAnnotation, EntityEnum,
	EntityEnumConstant, EntityField, EntityMethod, EntityConstructor,
	EntityAnnotationElement, EntityInitializer, EntityUnknown,
}

// ParseEntityKind validates s as an entity kind.
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range entityKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// IsType reports whether the kind declares a type.
func (k EntityKind) IsType() bool {
	switch k {
	case EntityClass, EntityInterface, EntityAnnotation, EntityEnum:
		return true
	}
	return false
}

// IsExecutable reports whether entities of this kind carry a parameter list.
func (k EntityKind) IsExecutable() bool {
	switch k {
	case EntityMethod, EntityConstructor, EntityAnnotationElement, EntityInitializer:
		return true
	}
	return false
}

// RelationKind is the kind of a directed edge between canonical names.
type RelationKind string

const (
	RelationInside         RelationKind = "INSIDE"
	RelationExtends        RelationKind = "EXTENDS"
	RelationImplements     RelationKind = "IMPLEMENTS"
	RelationHolds          RelationKind = "HOLDS"
	RelationReturns        RelationKind = "RETURNS"
	RelationParametrizedBy RelationKind = "PARAMETRIZED_BY"
	RelationUses           RelationKind = "USES"
)

var relationKinds = []RelationKind{
	RelationInside, RelationExtends, RelationImplements, RelationHolds,
	RelationReturns, RelationParametrizedBy, RelationUses,
}

// ParseRelationKind validates s as a relation kind.
func ParseRelationKind(s string) (RelationKind, error) {
	for _, k := range relationKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relation kind %q", s)
}

// Modifiers is a bitset of declaration modifiers. The bit values follow the
// JVM access flags so class-file front ends can pass them through unchanged.
type Modifiers uint32

const (
	ModPublic       Modifiers = 0x0001
	ModPrivate      Modifiers = 0x0002
	ModProtected    Modifiers = 0x0004
	ModStatic       Modifiers = 0x0008
	ModFinal        Modifiers = 0x0010
	ModSynchronized Modifiers = 0x0020
	ModVolatile     Modifiers = 0x0040
	ModTransient    Modifiers = 0x0080
	ModNative       Modifiers = 0x0100
	ModInterface    Modifiers = 0x0200
	ModAbstract     Modifiers = 0x0400
	ModStrictfp     Modifiers = 0x0800
	ModSynthetic    Modifiers = 0x1000
	ModAnnotation   Modifiers = 0x2000
	ModEnum         Modifiers = 0x4000
	ModDefault      Modifiers = 0x10000
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{ModPublic, "public"},
	{ModPrivate, "private"},
	{ModProtected, "protected"},
	{ModStatic, "static"},
	{ModFinal, "final"},
	{ModSynchronized, "synchronized"},
	{ModVolatile, "volatile"},
	{ModTransient, "transient"},
	{ModNative, "native"},
	{ModInterface, "interface"},
	{ModAbstract, "abstract"},
	{ModStrictfp, "strictfp"},
	{ModSynthetic, "synthetic"},
	{ModAnnotation, "annotation"},
	{ModEnum, "enum"},
	{ModDefault, "default"},
}

// Has reports whether every bit of mod is set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod == mod
}

// ModifierFromKeyword maps a Java source keyword to its bit, or 0.
func ModifierFromKeyword(kw string) Modifiers {
	for _, mn := range modifierNames {
		if mn.name == kw {
			return mn.mod
		}
	}
	return 0
}

func (m Modifiers) String() string {
	var parts []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, " ")
}
