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

// Package contract validates the bulk insert settings shared by the
// importers and the CLI.
//
// Rows are inserted with multi-row INSERT statements. A statement carries
// at most batchSize rows and at most maxArgs bound arguments, so the
// widest fact row must fit under the argument limit:
//
//	res := contract.ValidateBulk(cfg.Import.BatchSize, cfg.Import.MaxArgs, storage.MaxRowWidth())
//	if !res.OK {
//	    return errors.NewConfigError("Invalid import settings", res.Message, "Fix import.batch_size in .factbase/config.yaml", nil)
//	}
//
// # Limits
//
//   - DefaultBatchSize: rows per statement when unset (500)
//   - MaxBatchSize: upper bound accepted from configuration (10000)
package contract
