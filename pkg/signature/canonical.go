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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedKind is returned for capture types and unknown kinds.
	ErrUnsupportedKind = errors.New("unsupported descriptor kind")

	// ErrNilDescriptor is returned when a nil descriptor is reached.
	ErrNilDescriptor = errors.New("nil descriptor")

	// ErrMalformed is returned for descriptors missing a required field.
	ErrMalformed = errors.New("malformed descriptor")
)

// Canonicalize renders d as a canonical name.
//
// The result is a pure function of the descriptor:
//
//	java.lang.String                     class
//	java.util.Map$Entry                  nested class
//	int[][]                              array, one "[]" per dimension
//	java.util.List<java.lang.String>     generic instantiation
//	<T>                                  type variable
//	<?> <?+java.lang.Number> <?-<T>>     wildcards
//
// Capture types return ErrUnsupportedKind; callers log and skip them.
func Canonicalize(d *Descriptor) (string, error) {
	var b strings.Builder
	if err := write(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MustCanonicalize is Canonicalize for descriptors known to be valid.
func MustCanonicalize(d *Descriptor) string {
	s, err := Canonicalize(d)
	if err != nil {
		panic(err)
	}
	return s
}

func write(b *strings.Builder, d *Descriptor) error {
	if d == nil {
		return ErrNilDescriptor
	}
	switch d.Kind {
	case KindArray:
		if d.Dims < 1 {
			return fmt.Errorf("%w: array with %d dimensions", ErrMalformed, d.Dims)
		}
		if err := write(b, d.Elem); err != nil {
			return err
		}
		for i := 0; i < d.Dims; i++ {
			b.WriteString("[]")
		}
		return nil

	case KindClass:
		if d.Name == "" {
			return fmt.Errorf("%w: class without name", ErrMalformed)
		}
		b.WriteString(className(d.Name))
		if len(d.Args) == 0 {
			return nil
		}
		b.WriteByte('<')
		for i, arg := range d.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := write(b, arg); err != nil {
				return err
			}
		}
		b.WriteByte('>')
		return nil

	case KindPrimitive:
		if d.Name == "" {
			return fmt.Errorf("%w: primitive without name", ErrMalformed)
		}
		b.WriteString(d.Name)
		return nil

	case KindTypeVariable:
		if d.Name == "" {
			return fmt.Errorf("%w: type variable without name", ErrMalformed)
		}
		b.WriteByte('<')
		b.WriteString(d.Name)
		b.WriteByte('>')
		return nil

	case KindWildcard:
		switch d.Bound {
		case BoundNone:
			b.WriteString("<?>")
			return nil
		case BoundExtends:
			b.WriteString("<?+")
		case BoundSuper:
			b.WriteString("<?-")
		default:
			return fmt.Errorf("%w: wildcard bound %d", ErrMalformed, d.Bound)
		}
		if err := write(b, d.Elem); err != nil {
			return err
		}
		b.WriteByte('>')
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
}

// className normalizes the package part of a binary name. The name is split
// on the first '$': everything before it is the outer erasure and gets its
// separators normalized, everything after is appended as is.
func className(name string) string {
	outer, inner := name, ""
	if i := strings.IndexByte(name, '$'); i >= 0 {
		outer, inner = name[:i], name[i:]
	}
	return strings.ReplaceAll(outer, "/", ".") + inner
}

// RenderTypeParam renders a declared type parameter as <Name> or
// <Name+Bound1&Bound2>.
func RenderTypeParam(p TypeParam) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("%w: type parameter without name", ErrMalformed)
	}
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(p.Name)
	for i, bound := range p.Bounds {
		if i == 0 {
			b.WriteByte('+')
		} else {
			b.WriteByte('&')
		}
		if err := write(&b, bound); err != nil {
			return "", err
		}
	}
	b.WriteByte('>')
	return b.String(), nil
}
