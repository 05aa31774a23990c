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

package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of one unit in one stage.
type Outcome string

const (
	Imported                Outcome = "imported"
	SkippedComplete         Outcome = "skipped_complete"
	SkippedIncomplete       Outcome = "skipped_incomplete"
	ReimportedAfterRollback Outcome = "reimported_after_rollback"
	SkippedUnexpectedStage  Outcome = "skipped_unexpected_stage"
	Failed                  Outcome = "failed"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{Imported, ReimportedAfterRollback, SkippedComplete, SkippedIncomplete, SkippedUnexpectedStage, Failed}

// UnitResult records what happened to one unit.
type UnitResult struct {
	Unit       string        `json:"unit"`
	Kind       string        `json:"kind"`
	Key        string        `json:"key"`
	Outcome    Outcome       `json:"outcome"`
	UnitID     int64         `json:"unit_id,omitempty"`
	Entities   int           `json:"entities,omitempty"`
	Relations  int           `json:"relations,omitempty"`
	Parameters int           `json:"parameters,omitempty"`
	Files      int           `json:"files,omitempty"`
	Unknowns   int           `json:"unknowns,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Report is the outcome of one importer run.
type Report struct {
	RunID    string       `json:"run_id"`
	Stage    string       `json:"stage"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Aborted  string       `json:"aborted,omitempty"`
	Results  []UnitResult `json:"results"`
}

func newReport(stage Stage) *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Stage:   stage.String(),
		Started: time.Now().UTC(),
	}
}

func (r *Report) add(res UnitResult) {
	r.Results = append(r.Results, res)
}

func (r *Report) finish(abort error) {
	r.Finished = time.Now().UTC()
	if abort != nil {
		r.Aborted = abort.Error()
	}
}

// Count returns how many units ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Counts returns the non-zero outcome counts.
func (r *Report) Counts() map[Outcome]int {
	out := make(map[Outcome]int)
	for _, res := range r.Results {
		out[res.Outcome]++
	}
	return out
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// ReportStore persists run reports as JSON under a directory.
type ReportStore struct {
	dir string
}

// NewReportStore creates a store rooted at dir.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir}
}

func (s *ReportStore) path(r *Report) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", strings.ToLower(r.Stage), r.RunID))
}

// Save writes the report atomically (temp file + rename) and returns its
// path.
func (s *ReportStore) Save(r *Report) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := s.path(r)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("write report temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// Load reads one report file.
func (s *ReportStore) Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// List returns every saved report of stage (all stages when stage is
// StageUnset), newest first.
func (s *ReportStore) List(stage Stage) ([]*Report, error) {
	pattern := "*.json"
	if stage != StageUnset {
		pattern = strings.ToLower(stage.String()) + "-*.json"
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(paths))
	for _, p := range paths {
		r, err := s.Load(p)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Finished.After(reports[j].Finished)
	})
	return reports, nil
}

// ErrNoReport is returned by Latest when nothing was saved yet.
var ErrNoReport = errors.New("importer: no report saved")

// Latest returns the newest report of stage.
func (s *ReportStore) Latest(stage Stage) (*Report, error) {
	reports, err := s.List(stage)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoReport
	}
	return reports[0], nil
}
