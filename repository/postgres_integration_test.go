//go:build integration

/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/tomoncle/ormkit/database"
	"github.com/uptrace/bun"
)

func startPostgres(t *testing.T) *database.ConnectionConfig {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ormkit"),
		postgres.WithUsername("ormkit"),
		postgres.WithPassword("secret"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := database.DefaultConnectionConfig()
	cfg.Type = "postgres"
	cfg.Host = host
	cfg.Port = port.Int()
	cfg.Username = "ormkit"
	cfg.Password = "secret"
	cfg.DBName = "ormkit"
	cfg.HealthCheckInterval = 0
	return cfg
}

func TestPostgres_Drivers(t *testing.T) {
	base := startPostgres(t)

	for _, driver := range []string{"pq", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			cfg := *base
			cfg.Driver = driver
			m := database.NewDatabaseManager(&cfg)
			require.NoError(t, m.Connect(ctx))
			t.Cleanup(func() { _ = m.Disconnect() })

			db := m.GetDB()
			_, err := db.NewDropTable().Model((*Clinic)(nil)).IfExists().Exec(ctx)
			require.NoError(t, err)
			_, err = db.NewCreateTable().Model((*Clinic)(nil)).Exec(ctx)
			require.NoError(t, err)

			repo := NewRepository[Clinic](db)
			rows := seed(t, repo)

			got, err := repo.GetByFilters(ctx, Filters{"name__icontains": "ALPH"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Alpha"}, names(got))

			rows[1].Beds = 21
			require.NoError(t, repo.Upsert(ctx, []string{"beds"}, nil, rows[1]))
			beta, err := repo.GetOne(ctx, rows[1].ID)
			require.NoError(t, err)
			assert.Equal(t, 21, beta.Beds)

			agg, err := repo.AnnotateByFilters(ctx, Filters{"city": "Pune"}, "beds", Max)
			require.NoError(t, err)
			assert.Equal(t, []Row{{"max": int64(21)}}, agg)

			random, err := repo.GetByFilters(ctx, nil, WithOrder(RandomOrder))
			require.NoError(t, err)
			assert.Len(t, random, 4)

			_, err = repo.Create(ctx, Payload{"name": "Alpha"})
			require.Error(t, err)
			is, kind := database.IsSqlError(err)
			assert.True(t, is)
			assert.Equal(t, database.DuplicateKeyErr, kind)

			_, err = db.NewSelect().Model((*Clinic)(nil)).Where("? = 1", bun.Ident("colour")).Exists(ctx)
			is, kind = database.IsSqlError(err)
			assert.True(t, is)
			assert.Equal(t, database.NoColumnErr, kind)
		})
	}
}
