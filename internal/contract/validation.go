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

package contract

import "fmt"

const (
	DefaultBatchSize = 500
	MaxBatchSize     = 10000
)

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

func invalid(format string, args ...any) *ValidationResult {
	return &ValidationResult{OK: false, Message: fmt.Sprintf(format, args...)}
}

// ValidateBulk checks a batch size and argument cap against the width of
// the widest row. A maxArgs of 0 means the dialect limit and is accepted.
func ValidateBulk(batchSize, maxArgs, rowWidth int) *ValidationResult {
	switch {
	case batchSize < 1:
		return invalid("batch size must be positive, got %d", batchSize)
	case batchSize > MaxBatchSize:
		return invalid("batch size %d exceeds %d", batchSize, MaxBatchSize)
	case maxArgs < 0:
		return invalid("max args must not be negative, got %d", maxArgs)
	case maxArgs > 0 && maxArgs < rowWidth:
		return invalid("max args %d is below the row width %d", maxArgs, rowWidth)
	}
	return &ValidationResult{OK: true}
}

// EffectiveBatchSize returns the rows per statement actually used: the
// configured batch size, reduced so that rows of rowWidth fit maxArgs.
func EffectiveBatchSize(batchSize, maxArgs, rowWidth int) int {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxArgs > 0 && rowWidth > 0 && batchSize*rowWidth > maxArgs {
		batchSize = maxArgs / rowWidth
	}
	return batchSize
}
