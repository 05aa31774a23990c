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

// Package javasrc parses Java source files into type declarations using
// the tree-sitter Java grammar.
package javasrc

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/signature"
)

// Parser turns Java compilation units into type declarations.
// A Parser is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
	logger *slog.Logger
}

// NewParser creates a parser for the Java grammar.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{parser: p, logger: logger}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// Parse returns one TypeDecl per type declared in src: top-level, member,
// local and anonymous types, each enclosing type before the types nested
// in it.
//
// Extracts:
//   - Classes, interfaces, enums, records and annotation types
//   - Fields, enum constants and interface constants
//   - Methods, constructors, annotation elements and static initializers
//   - Declared type parameters with their bounds
//   - Anonymous classes, numbered per top-level type in source order
//
// Files with syntax errors are parsed best effort.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) ([]facts.TypeDecl, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if errorCount := countErrors(root); errorCount > 0 {
			p.logger.Warn("javasrc.parse.syntax_errors",
				"path", path,
				"error_count", errorCount,
			)
		}
	}

	f := newFile(path, src)
	f.header(root)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if n := root.NamedChild(i); isTypeDecl(n.Type()) {
			f.declare(n, "", "", nil, false)
		}
	}
	return f.decls, nil
}

// countErrors counts ERROR and MISSING nodes below n.
func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Type() == "ERROR" || n.IsMissing() {
		count++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}

func isTypeDecl(t string) bool {
	switch t {
	case "class_declaration", "interface_declaration", "enum_declaration",
		"annotation_type_declaration", "record_declaration":
		return true
	}
	return false
}

func isTypeNode(t string) bool {
	switch t {
	case "integral_type", "floating_point_type", "boolean_type", "void_type",
		"type_identifier", "scoped_type_identifier", "generic_type",
		"array_type", "annotated_type":
		return true
	}
	return false
}

// childOfType returns the first child of n with the given node type.
func childOfType(n *sitter.Node, t string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == t {
			return c
		}
	}
	return nil
}

// firstType returns the first named child of n that is a type.
func firstType(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); isTypeNode(c.Type()) {
			return c
		}
	}
	return nil
}

// lastType returns the last named child of n that is a type.
func lastType(n *sitter.Node) *sitter.Node {
	var last *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); isTypeNode(c.Type()) {
			last = c
		}
	}
	return last
}

func arrayOf(elem *signature.Descriptor, dims int) *signature.Descriptor {
	if elem == nil || dims == 0 {
		return elem
	}
	return signature.Array(elem, dims)
}
