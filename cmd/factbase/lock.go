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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// importLock keeps two import runs from writing the same store. The holder
// records its PID and start time next to the lock so a blocked run can say
// who holds it.
type importLock struct {
	path string
	lock *flock.Flock
}

// LockInfo describes the current lock holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

func newImportLock(path string) *importLock {
	return &importLock{path: path, lock: flock.New(path)}
}

func (l *importLock) infoPath() string { return l.path + ".info" }

// TryLock takes the lock without waiting. It reports false when another
// process holds it.
func (l *importLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("flock: %w", err)
	}
	if !ok {
		return false, nil
	}
	info := fmt.Sprintf("%d %d\n", os.Getpid(), time.Now().Unix())
	if err := os.WriteFile(l.infoPath(), []byte(info), 0600); err != nil {
		_ = l.lock.Unlock()
		return false, fmt.Errorf("write lock info: %w", err)
	}
	return true, nil
}

// Unlock releases the lock and removes the holder info.
func (l *importLock) Unlock() {
	if !l.lock.Locked() {
		return
	}
	_ = os.Remove(l.infoPath())
	_ = l.lock.Unlock()
}

// Holder returns the recorded holder, or nil when none is recorded.
func (l *importLock) Holder() (*LockInfo, error) {
	data, err := os.ReadFile(l.infoPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed lock info %q", strings.TrimSpace(string(data)))
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("lock pid: %w", err)
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("lock time: %w", err)
	}
	return &LockInfo{PID: pid, StartedAt: time.Unix(ts, 0)}, nil
}
