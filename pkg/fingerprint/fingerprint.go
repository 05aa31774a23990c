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

// Package fingerprint groups byte-identical files across projects.
//
// A Fingerprint is the (md5, sha1, length) triple of a file's content. The
// primary hash alone is never trusted: two files only share a Group when all
// three components match.
package fingerprint

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint identifies file content. It is comparable and usable as a map key.
type Fingerprint struct {
	Primary   string `json:"md5"`
	Secondary string `json:"sha"`
	Length    int64  `json:"length"`
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s:%d", f.Primary, f.Secondary, f.Length)
}

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Compute hashes everything read from r.
func Compute(r io.Reader) (Fingerprint, error) {
	m := md5.New()
	s := sha1.New()
	n, err := io.Copy(io.MultiWriter(m, s), r)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash content: %w", err)
	}
	return Fingerprint{
		Primary:   hex.EncodeToString(m.Sum(nil)),
		Secondary: hex.EncodeToString(s.Sum(nil)),
		Length:    n,
	}, nil
}

// ComputeFile fingerprints the file at path.
func ComputeFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer func() { _ = f.Close() }()
	return Compute(f)
}

// ComputeBytes fingerprints an in-memory buffer.
func ComputeBytes(b []byte) Fingerprint {
	m := md5.Sum(b)
	s := sha1.Sum(b)
	return Fingerprint{
		Primary:   hex.EncodeToString(m[:]),
		Secondary: hex.EncodeToString(s[:]),
		Length:    int64(len(b)),
	}
}
