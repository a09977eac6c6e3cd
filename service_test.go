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

package ormkit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/ormkit/repository"
	"github.com/tomoncle/ormkit/serializer"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Ward struct {
	bun.BaseModel `bun:"table:wards"`

	ID   int64            `bun:"id,pk,autoincrement"`
	Name string           `bun:"name"`
	Meta types.JsonObject `bun:"meta,type:text"`
	Cots []*Cot           `bun:"rel:has-many,join:id=ward_id"`
}

type Cot struct {
	bun.BaseModel `bun:"table:cots"`

	ID     int64  `bun:"id,pk,autoincrement"`
	WardID int64  `bun:"ward_id"`
	Label  string `bun:"label"`
	Ward   *Ward  `bun:"rel:belongs-to,join:ward_id=id"`
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, m := range []interface{}{(*Ward)(nil), (*Cot)(nil)} {
		_, err := db.NewCreateTable().Model(m).Exec(context.Background())
		require.NoError(t, err)
	}
	return db
}

func TestService_Dicts(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	wards := NewServiceWithDB[Ward](db)
	cots := NewServiceWithDB[Cot](db)

	east, err := wards.Create(ctx, repository.Payload{"name": "East", "meta": types.JsonObject{"floor": 2}})
	require.NoError(t, err)
	_, err = wards.Create(ctx, repository.Payload{"name": "West", "meta": types.JsonObject{"floor": 1}})
	require.NoError(t, err)
	for _, label := range []string{"E1", "E2"} {
		_, err := cots.Create(ctx, repository.Payload{"ward_id": east.ID, "label": label})
		require.NoError(t, err)
	}

	dicts, err := wards.Dicts(ctx, nil, []repository.QueryOption{repository.WithOrder("name")})
	require.NoError(t, err)
	require.Len(t, dicts, 2)

	out, err := json.Marshal(dicts)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":1,"name":"East","meta":{"floor":2},"cots":[{"id":1,"ward_id":1,"label":"E1"},{"id":2,"ward_id":1,"label":"E2"}]},
		{"id":2,"name":"West","meta":{"floor":1},"cots":[]}
	]`, string(out))

	flat, err := wards.Dicts(ctx, repository.Filters{"name": "West"}, nil, serializer.WithRelated(false))
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, []string{"id", "name", "meta"}, flat[0].Keys())
}

func TestService_DictBelongsTo(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	wards := NewServiceWithDB[Ward](db)
	cots := NewServiceWithDB[Cot](db)

	east, err := wards.Create(ctx, repository.Payload{"name": "East", "meta": types.JsonObject{"floor": 3}})
	require.NoError(t, err)
	cot, err := cots.Create(ctx, repository.Payload{"ward_id": east.ID, "label": "E1"})
	require.NoError(t, err)

	m, err := cots.Dict(ctx, cot, serializer.WithFilterKeys("label", "ward"))
	require.NoError(t, err)
	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"E1","ward":{"id":1,"name":"East","meta":{"floor":3}}}`, string(out))
}

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	wards := NewServiceWithDB[Ward](db)

	w, created, err := wards.GetOrCreate(ctx, repository.Payload{"name": "North"}, nil)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, wards.Update(ctx, w, repository.Payload{"name": "North Wing"}, nil))
	got, err := wards.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "North Wing", got.Name)

	n, err := wards.Count(ctx, repository.Filters{"name__startswith": "North"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := wards.WithTx(tx).Create(ctx, repository.Payload{"name": "South"})
		return err
	})
	require.NoError(t, err)

	list, err := wards.List(ctx, nil, repository.WithOrder("-name"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "South", list[0].Name)

	require.NoError(t, wards.Delete(ctx, nil, repository.Filters{"name": "South"}))
	n, err = wards.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, wards.Repository())
}
