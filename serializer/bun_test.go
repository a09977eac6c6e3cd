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

package serializer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/ormkit/model"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Patient struct {
	bun.BaseModel `bun:"table:patients"`

	ID            int64           `bun:"id,pk,autoincrement"`
	Name          string          `bun:"name"`
	Nickname      null.String     `bun:"nickname"`
	Prescriptions []*Prescription `bun:"rel:has-many,join:id=patient_id"`
}

type Prescription struct {
	bun.BaseModel `bun:"table:prescriptions"`

	ID        int64    `bun:"id,pk,autoincrement"`
	PatientID int64    `bun:"patient_id"`
	Drug      string   `bun:"drug"`
	Patient   *Patient `bun:"rel:belongs-to,join:patient_id=id"`
}

type tableCounter struct {
	table string
	n     int32
}

func (c *tableCounter) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (c *tableCounter) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if strings.Contains(event.Query, fmt.Sprintf("FROM %q", c.table)) {
		atomic.AddInt32(&c.n, 1)
	}
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, m := range []interface{}{(*Patient)(nil), (*Prescription)(nil)} {
		_, err := db.NewCreateTable().Model(m).Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func TestToDict_BunInstance(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	asha := &Patient{Name: "Asha", Nickname: null.StringFrom("A")}
	_, err := db.NewInsert().Model(asha).Exec(ctx)
	require.NoError(t, err)
	rxs := []*Prescription{{PatientID: asha.ID, Drug: "ibuprofen"}, {PatientID: asha.ID, Drug: "aspirin"}}
	_, err = db.NewInsert().Model(&rxs).Exec(ctx)
	require.NoError(t, err)

	counter := &tableCounter{table: "prescriptions"}
	db.AddQueryHook(counter)

	loaded := new(Patient)
	require.NoError(t, db.NewSelect().Model(loaded).Where("id = ?", asha.ID).Scan(ctx))
	in, err := model.Bind(db, loaded)
	require.NoError(t, err)

	m, err := ToDict(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "nickname", "prescriptions"}, m.Keys())
	nick, _ := m.Get("nickname")
	assert.Equal(t, "A", nick.Str())

	v, _ := m.Get("prescriptions")
	require.Len(t, v.Items(), 2)
	drugs := []string{}
	for _, item := range v.Items() {
		assert.Equal(t, []string{"id", "patient_id", "drug"}, item.Mapping().Keys())
		d, _ := item.Mapping().Get("drug")
		drugs = append(drugs, d.Str())
	}
	assert.ElementsMatch(t, []string{"ibuprofen", "aspirin"}, drugs)
	assert.EqualValues(t, 1, atomic.LoadInt32(&counter.n))

	_, err = ToDict(ctx, in)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&counter.n))

	flat, err := ToDict(ctx, in, WithRelated(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "nickname"}, flat.Keys())
}

func TestToDict_BunBelongsTo(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	asha := &Patient{Name: "Asha"}
	_, err := db.NewInsert().Model(asha).Exec(ctx)
	require.NoError(t, err)
	rx := &Prescription{PatientID: asha.ID, Drug: "ibuprofen"}
	_, err = db.NewInsert().Model(rx).Exec(ctx)
	require.NoError(t, err)

	loaded := new(Prescription)
	require.NoError(t, db.NewSelect().Model(loaded).Where("id = ?", rx.ID).Scan(ctx))
	in, err := model.Bind(db, loaded)
	require.NoError(t, err)

	m, err := ToDict(ctx, in)
	require.NoError(t, err)
	owner, ok := m.Get("patient")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "nickname"}, owner.Mapping().Keys())
	nick, _ := owner.Mapping().Get("nickname")
	assert.True(t, nick.IsNull())
}

func TestToDict_FetchKeepsUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	asha := &Patient{Name: "Asha"}
	_, err := db.NewInsert().Model(asha).Exec(ctx)
	require.NoError(t, err)
	rx := &Prescription{PatientID: asha.ID, Drug: "ibuprofen"}
	_, err = db.NewInsert().Model(rx).Exec(ctx)
	require.NoError(t, err)

	loaded := new(Prescription)
	require.NoError(t, db.NewSelect().Model(loaded).Where("id = ?", rx.ID).Scan(ctx))
	loaded.Drug = "paracetamol"
	in, err := model.Bind(db, loaded)
	require.NoError(t, err)

	m, err := ToDict(ctx, in, WithFilterKeys("patient", "drug"))
	require.NoError(t, err)
	assert.Equal(t, []string{"patient", "drug"}, m.Keys())
	drug, _ := m.Get("drug")
	assert.Equal(t, "paracetamol", drug.Str())
	assert.Equal(t, "paracetamol", loaded.Drug)
	owner, _ := m.Get("patient")
	name, _ := owner.Mapping().Get("name")
	assert.Equal(t, "Asha", name.Str())

	parent := new(Patient)
	require.NoError(t, db.NewSelect().Model(parent).Where("id = ?", asha.ID).Scan(ctx))
	parent.Name = "Asha R"
	pin, err := model.Bind(db, parent)
	require.NoError(t, err)

	m, err = ToDict(ctx, pin)
	require.NoError(t, err)
	name, _ = m.Get("name")
	assert.Equal(t, "Asha R", name.Str())
	assert.Equal(t, "Asha R", parent.Name)
	items, _ := m.Get("prescriptions")
	require.Len(t, items.Items(), 1)
	d, _ := items.Items()[0].Mapping().Get("drug")
	assert.Equal(t, "ibuprofen", d.Str())
}

func TestToDict_MissingRelatedRow(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	orphan := &Prescription{PatientID: 404, Drug: "aspirin"}
	_, err := db.NewInsert().Model(orphan).Exec(ctx)
	require.NoError(t, err)
	lonely := &Patient{Name: "Meera"}
	_, err = db.NewInsert().Model(lonely).Exec(ctx)
	require.NoError(t, err)

	in, err := model.Bind(db, orphan)
	require.NoError(t, err)
	m, err := ToDict(ctx, in)
	require.NoError(t, err)
	owner, ok := m.Get("patient")
	require.True(t, ok)
	assert.True(t, owner.IsNull())

	in, err = model.Bind(db, lonely)
	require.NoError(t, err)
	m, err = ToDict(ctx, in)
	require.NoError(t, err)
	items, ok := m.Get("prescriptions")
	require.True(t, ok)
	assert.Empty(t, items.Items())
	assert.NotNil(t, lonely.Prescriptions)
}
