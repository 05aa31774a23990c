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

package main

import (
	clierrors "github.com/kraklabs/factbase/internal/errors"
)

// exitCleanup holds releases that must also run on a fatal exit, since
// os.Exit skips deferred calls. Commands defer run and exit through fatal.
type exitCleanup struct {
	fns []func()
}

// add registers fn. Functions run in reverse order of registration.
func (c *exitCleanup) add(fn func()) {
	c.fns = append(c.fns, fn)
}

// run calls every registered function once.
func (c *exitCleanup) run() {
	fns := c.fns
	c.fns = nil
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// fatal releases everything registered and then exits via FatalError.
func (c *exitCleanup) fatal(err error, jsonOutput bool) {
	c.run()
	clierrors.FatalError(err, jsonOutput)
}
