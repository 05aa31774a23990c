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

//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "factbase",
			"POSTGRES_USER":     "factbase",
			"POSTGRES_PASSWORD": "factbase",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://factbase:factbase@%s:%s/factbase?sslmode=disable", host, port.Port())
}

func TestPostgres_UnitLifecycle(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	b, err := Open(ctx, Config{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	assert.Equal(t, DialectPostgres, b.Dialect())

	id, err := InsertUnit(ctx, b, "library", "guava.jar", "guava", "h")
	require.NoError(t, err)
	require.NoError(t, b.WithTx(ctx, func(q Querier) error {
		batcher := NewBatcher(q, TableEntities, EntityColumns, 2, 0)
		for i := 0; i < 5; i++ {
			if err := batcher.Add(ctx, id, "CLASS", fmt.Sprintf("g.C%d", i), "", int64(1), nil, nil, nil, nil); err != nil {
				return err
			}
		}
		if err := batcher.Flush(ctx); err != nil {
			return err
		}
		return SetUnitStage(ctx, q, id, "END_ENTITY")
	}))

	u, err := FindUnit(ctx, b, "library", "guava.jar")
	require.NoError(t, err)
	assert.Equal(t, "END_ENTITY", u.StageName())

	refs, err := EntitiesOfUnits(ctx, b, []string{"library"}, []string{"END_ENTITY"}, []string{"CLASS"})
	require.NoError(t, err)
	assert.Len(t, refs, 5)

	require.NoError(t, DeleteUnit(ctx, b, id))
	n, err := CountRows(ctx, b, TableEntities, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Reopening applies no migrations.
	b2, err := Open(ctx, Config{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, b2.Close())
}
