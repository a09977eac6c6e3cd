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

package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/iancoleman/strcase"
	"github.com/tomoncle/ormkit/types"
	"github.com/tomoncle/ormkit/utils"
	"github.com/uptrace/bun"
)

var logger = utils.NewLogger("model")

// SerializableKeyer is implemented by models that restrict the keys they
// serialize by default.
type SerializableKeyer interface {
	SerializableKeys() []string
}

// Instance binds a model struct pointer to a database handle and tracks its
// persistence and relation state.
type Instance struct {
	db        bun.IDB
	schema    *Schema
	ptr       reflect.Value
	persisted bool
	relations map[string]*Relation
}

var _ Entity = (*Instance)(nil)

// Bind wraps a model that was loaded from storage.
func Bind(db bun.IDB, model interface{}) (*Instance, error) {
	return bind(db, model, true)
}

// NewInstance wraps a model that has not been inserted yet.
func NewInstance(db bun.IDB, model interface{}) (*Instance, error) {
	return bind(db, model, false)
}

// BindAll wraps every element of a slice of loaded models.
func BindAll[T any](db bun.IDB, models []*T) ([]*Instance, error) {
	out := make([]*Instance, 0, len(models))
	for _, m := range models {
		in, err := Bind(db, m)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func bind(db bun.IDB, model interface{}, persisted bool) (*Instance, error) {
	ptr := reflect.ValueOf(model)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() || ptr.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a non-nil pointer to struct, got %T", model)
	}
	s, err := SchemaFor(ptr.Elem().Type())
	if err != nil {
		return nil, err
	}
	return &Instance{
		db:        db,
		schema:    s,
		ptr:       ptr,
		persisted: persisted,
		relations: make(map[string]*Relation),
	}, nil
}

func (in *Instance) Schema() *Schema { return in.schema }

// Model returns the bound struct pointer.
func (in *Instance) Model() interface{} { return in.ptr.Interface() }

func (in *Instance) Persisted() bool { return in.persisted }

func (in *Instance) strct() reflect.Value { return in.ptr.Elem() }

func (in *Instance) Get(name string) (interface{}, error) {
	f, ok := in.schema.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", in.schema.Type.Name(), name)
	}
	return f.Get(in.strct()), nil
}

func (in *Instance) Set(name string, value interface{}) error {
	f, ok := in.schema.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %q", in.schema.Type.Name(), name)
	}
	if err := f.Set(in.strct(), value); err != nil {
		return err
	}
	if f.IsRelation() {
		in.Relation(name).state = Loaded
	}
	return nil
}

// Assign sets every payload entry on the model.
func (in *Instance) Assign(payload map[string]interface{}) error {
	for _, name := range sortedKeys(payload) {
		if err := in.Set(name, payload[name]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Instance) FieldNames() []string { return in.schema.FieldNames() }

func (in *Instance) ToOneFields() []string { return in.schema.ToOneFields() }

func (in *Instance) ToManyFields() []string { return in.schema.ToManyFields() }

func (in *Instance) SerializableKeys() []string {
	if k, ok := in.Model().(SerializableKeyer); ok {
		return k.SerializableKeys()
	}
	return nil
}

func (in *Instance) Attr(name string) (types.Value, bool) {
	f, ok := in.schema.Field(name)
	if !ok {
		return types.NullValue(), true
	}
	return f.Serialize(in.strct())
}

// Relation returns the handle of a relation field, or nil when name is not a
// relation. A struct that already holds related data counts as loaded.
func (in *Instance) Relation(name string) *Relation {
	f, ok := in.schema.Field(name)
	if !ok || !f.IsRelation() {
		return nil
	}
	if r, ok := in.relations[f.Name]; ok {
		return r
	}
	state := Unloaded
	if v := f.Value(in.strct()); !v.IsNil() {
		state = Loaded
	}
	r := newRelation(f, state)
	in.relations[f.Name] = r
	return r
}

func (in *Instance) ToOne(name string) (Entity, bool) {
	r := in.Relation(name)
	if r == nil || !r.field.IsToOne() || !r.Loaded() {
		return nil, false
	}
	v := r.field.Value(in.strct())
	if v.IsNil() {
		return nil, true
	}
	target, err := Bind(in.db, v.Interface())
	if err != nil {
		return nil, true
	}
	return target, true
}

func (in *Instance) ToMany(name string) ([]Entity, bool) {
	r := in.Relation(name)
	if r == nil || !r.field.IsToMany() || !r.Loaded() {
		return nil, false
	}
	v := r.field.Value(in.strct())
	out := make([]Entity, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() != reflect.Ptr {
			item = item.Addr()
		}
		target, err := Bind(in.db, item.Interface())
		if err != nil {
			logger.WithField("field", name).WithField("index", i).Debugf("Skipping related item: %v", err)
			continue
		}
		out = append(out, target)
	}
	return out, true
}

// FetchRelated loads one relation and marks it loaded. Only the related
// table is queried, with the current in-memory join value, so unsaved changes
// to the model itself are kept.
func (in *Instance) FetchRelated(ctx context.Context, name string) error {
	r := in.Relation(name)
	if r == nil {
		return fmt.Errorf("%s has no relation %q", in.schema.Type.Name(), name)
	}
	if in.db == nil {
		return fmt.Errorf("%s is not bound to a database", in.schema.Type.Name())
	}
	r.begin()
	err := in.fetch(ctx, r.field)
	r.finish(err)
	return err
}

func (in *Instance) fetch(ctx context.Context, f *Field) error {
	base, target, err := in.joinColumns(f)
	if err != nil {
		return err
	}
	key, ok := in.schema.Field(base)
	if !ok || key.IsRelation() {
		return fmt.Errorf("%s has no join column %q", in.schema.Type.Name(), base)
	}
	keyValue := key.Value(in.strct())
	dst := f.Value(in.strct())

	if f.IsToMany() {
		rows := reflect.New(f.Type)
		q := in.db.NewSelect().
			Model(rows.Interface()).
			Where("?TableAlias.? = ?", bun.Ident(target), keyValue.Interface())
		if pk := primaryColumn(f.Type); pk != "" {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(pk))
		}
		if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if rows.Elem().IsNil() {
			rows.Elem().Set(reflect.MakeSlice(f.Type, 0, 0))
		}
		dst.Set(rows.Elem())
		return nil
	}

	if f.Type.Kind() != reflect.Ptr {
		return fmt.Errorf("%s.%s must be a pointer to fetch it", in.schema.Type.Name(), f.GoName)
	}
	if keyValue.Kind() == reflect.Ptr && keyValue.IsNil() {
		dst.Set(reflect.Zero(f.Type))
		return nil
	}
	row := reflect.New(f.Type.Elem())
	err = in.db.NewSelect().
		Model(row.Interface()).
		Where("?TableAlias.? = ?", bun.Ident(target), keyValue.Interface()).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		dst.Set(reflect.Zero(f.Type))
	case err != nil:
		return err
	default:
		dst.Set(row)
	}
	return nil
}

// joinColumns returns the local and related columns of a relation. Without a
// join option bun's defaults apply: <field>_id=<pk> for belongs-to and
// <pk>=<model>_id for has-one and has-many.
func (in *Instance) joinColumns(f *Field) (string, string, error) {
	if f.JoinBase != "" {
		return f.JoinBase, f.JoinTarget, nil
	}
	switch f.Relation {
	case BelongsTo:
		pk := primaryColumn(f.Type)
		if pk == "" {
			return "", "", fmt.Errorf("%s.%s: related model has no primary key", in.schema.Type.Name(), f.GoName)
		}
		return strcase.ToSnake(f.GoName) + "_id", pk, nil
	case HasOne, HasMany:
		if len(in.schema.PKs) == 0 {
			return "", "", fmt.Errorf("%s has no primary key", in.schema.Type.Name())
		}
		return in.schema.PKs[0].Column, strcase.ToSnake(in.schema.Type.Name()) + "_id", nil
	}
	return "", "", fmt.Errorf("%s.%s: %s relations cannot be fetched", in.schema.Type.Name(), f.GoName, f.Relation)
}

// primaryColumn returns the first primary key column of the model behind a
// relation type such as *T or []*T.
func primaryColumn(typ reflect.Type) string {
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return ""
	}
	s, err := SchemaFor(typ)
	if err != nil || len(s.PKs) == 0 {
		return ""
	}
	return s.PKs[0].Column
}

// Save validates the model and inserts it, or updates it by primary key when
// it is already persisted. Only the named fields are written when given.
func (in *Instance) Save(ctx context.Context, fieldNames ...string) error {
	columns, err := in.clean(fieldNames)
	if err != nil {
		return err
	}
	if !in.persisted {
		if _, err := in.db.NewInsert().Model(in.Model()).Exec(ctx); err != nil {
			return err
		}
		in.persisted = true
		return nil
	}
	q := in.db.NewUpdate().Model(in.Model()).WherePK()
	if len(fieldNames) > 0 {
		q = q.Column(columns...)
	}
	_, err = q.Exec(ctx)
	return err
}

// Validate runs descriptors and validators for the named fields, or all
// fields, without writing to the database. Converted values are stored back
// on the model.
func (in *Instance) Validate(fieldNames ...string) error {
	_, err := in.clean(fieldNames)
	return err
}

// Delete removes the row of the model by primary key.
func (in *Instance) Delete(ctx context.Context) error {
	_, err := in.db.NewDelete().Model(in.Model()).WherePK().Exec(ctx)
	return err
}

// clean runs field descriptors and validators over the fields being written,
// assigns the storage form back to the model, and returns their columns.
func (in *Instance) clean(fieldNames []string) ([]string, error) {
	targets := in.schema.Fields
	if len(fieldNames) > 0 {
		targets = make([]*Field, 0, len(fieldNames))
		for _, name := range fieldNames {
			f, ok := in.schema.Field(name)
			if !ok || f.IsRelation() {
				return nil, fmt.Errorf("%s has no column %q", in.schema.Type.Name(), name)
			}
			targets = append(targets, f)
		}
	}
	columns := make([]string, 0, len(targets))
	for _, f := range targets {
		if f.IsRelation() {
			continue
		}
		columns = append(columns, f.Column)
		if f.Descriptor == nil {
			continue
		}
		v, err := f.Descriptor.ToStorage(f.Get(in.strct()), in)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if err := f.Descriptor.Validate(f.Name, v); err != nil {
			return nil, err
		}
		if v != nil {
			if err := f.Set(in.strct(), v); err != nil {
				return nil, err
			}
		}
	}
	return columns, nil
}
