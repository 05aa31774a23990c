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

package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PropertiesFile is the per-unit metadata file.
const PropertiesFile = "properties.yaml"

// Kind classifies a unit.
type Kind string

const (
	KindLibrary Kind = "library"
	KindMaven   Kind = "maven"
	KindProject Kind = "project"
)

// Kinds lists every unit kind in import order: libraries first so the
// structural stage of projects can resolve against them.
var Kinds = []Kind{KindLibrary, KindMaven, KindProject}

// ParseKind accepts the kind names and their plurals.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "library", "libraries", "lib":
		return KindLibrary, nil
	case "maven":
		return KindMaven, nil
	case "project", "projects":
		return KindProject, nil
	default:
		return "", fmt.Errorf("unknown unit kind %q", s)
	}
}

// Dir is the top-level directory holding units of the kind.
func (k Kind) Dir() string {
	switch k {
	case KindLibrary:
		return "libraries"
	case KindMaven:
		return "maven"
	default:
		return "projects"
	}
}

// IsJar reports whether units of the kind are binary artifacts.
func (k Kind) IsJar() bool {
	return k == KindLibrary || k == KindMaven
}

// Properties is the metadata stored in a unit's properties.yaml.
type Properties struct {
	Name    string `yaml:"name"`
	Kind    Kind   `yaml:"kind"`
	Group   string `yaml:"group,omitempty"`
	Version string `yaml:"version,omitempty"`
	// Hash is the md5 of the unit's jar, empty for projects.
	Hash string `yaml:"hash,omitempty"`
	// Jar is the jar path relative to the unit directory.
	Jar string `yaml:"jar,omitempty"`

	Extracted   bool      `yaml:"extracted"`
	HasSource   bool      `yaml:"has_source,omitempty"`
	ExtractedAt time.Time `yaml:"extracted_at,omitempty"`
	// Error holds the reason of the last failed extraction.
	Error string `yaml:"error,omitempty"`
}

// ReadProperties loads dir/properties.yaml.
func ReadProperties(dir string) (*Properties, error) {
	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	if err != nil {
		return nil, err
	}
	var p Properties
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", PropertiesFile, err)
	}
	return &p, nil
}

// WriteProperties saves p to dir/properties.yaml atomically (temp file +
// rename), so a crash never leaves a half-written extracted flag.
func WriteProperties(dir string, p *Properties) error {
	if p == nil {
		return errors.New("nil properties")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	path := filepath.Join(dir, PropertiesFile)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write properties temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename properties: %w", err)
	}
	return nil
}
