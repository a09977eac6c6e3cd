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
	"fmt"
	"sort"
	"strings"

	"github.com/tomoncle/ormkit/database"
	"github.com/tomoncle/ormkit/model"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic repository backed by the provided Bun DB
// or transaction.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) Schema() (*model.Schema, error) { return model.SchemaOf((*T)(nil)) }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) WithTx(tx bun.Tx) Repository[T] {
	return &baseRepositoryImpl[T]{db: tx}
}

func (r *baseRepositoryImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	s, err := r.Schema()
	if err != nil {
		return nil, err
	}
	if len(s.PKs) == 0 {
		return nil, fmt.Errorf("%s has no primary key", s.Type.Name())
	}
	entity := new(T)
	err = r.db.NewSelect().Model(entity).Where("? = ?", bun.Ident(s.PKs[0].Column), id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) GetByFilters(ctx context.Context, filters Filters, opts ...QueryOption) ([]*T, error) {
	s, err := r.Schema()
	if err != nil {
		return nil, err
	}
	o := newQueryOptions(DefaultLimit, opts)

	var entities []*T
	q := r.db.NewSelect().Model(&entities)
	if q, err = r.selectQuery(q, s, filters, o); err != nil {
		return nil, err
	}
	if len(o.only) > 0 {
		cols, err := columns(s, o.only)
		if err != nil {
			return nil, err
		}
		q = q.Column(cols...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) CountByFilters(ctx context.Context, filters Filters, opts ...QueryOption) (int, error) {
	s, err := r.Schema()
	if err != nil {
		return 0, err
	}
	o := newQueryOptions(0, opts)

	q := r.db.NewSelect().Model((*T)(nil))
	if o.limit <= 0 && o.offset <= 0 {
		if q, err = applyFilters(q, s, filters); err != nil {
			return 0, err
		}
		return q.Count(ctx)
	}

	// LIMIT and OFFSET bound the rows counted, so count over a subquery.
	if q, err = r.selectQuery(q.ColumnExpr("1"), s, filters, o); err != nil {
		return 0, err
	}
	var n int
	err = r.db.NewSelect().
		TableExpr("(?) AS ?", q, bun.Ident("counted")).
		ColumnExpr("COUNT(*)").
		Scan(ctx, &n)
	return n, err
}

func (r *baseRepositoryImpl[T]) selectQuery(q *bun.SelectQuery, s *model.Schema, filters Filters, o *queryOptions) (*bun.SelectQuery, error) {
	q, err := applyFilters(q, s, filters)
	if err != nil {
		return nil, err
	}
	if q, err = applyOrder(q, s, r.db.Dialect().Name(), o.order); err != nil {
		return nil, err
	}
	if o.limit > 0 {
		q = q.Limit(o.limit)
	}
	if o.offset > 0 {
		q = q.Offset(o.offset)
	}
	return q, nil
}

func (r *baseRepositoryImpl[T]) ValuesByFilters(ctx context.Context, filters Filters, names ...string) ([]Row, error) {
	s, err := r.Schema()
	if err != nil {
		return nil, err
	}
	cols, err := columns(s, names)
	if err != nil {
		return nil, err
	}
	q := r.db.NewSelect().Model((*T)(nil))
	if len(cols) > 0 {
		q = q.Column(cols...)
	}
	if q, err = applyFilters(q, s, filters); err != nil {
		return nil, err
	}
	rows := make([]Row, 0)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *baseRepositoryImpl[T]) AnnotateByFilters(ctx context.Context, filters Filters, column string, function interface{}, opts ...AnnotateOption) ([]Row, error) {
	name, aggregate, err := resolveAggregate(function)
	if err != nil {
		return nil, err
	}
	o := &annotateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	s, err := r.Schema()
	if err != nil {
		return nil, err
	}
	col, err := s.Column(column)
	if err != nil {
		return nil, err
	}
	values, err := columns(s, o.values)
	if err != nil {
		return nil, err
	}
	groupBy, err := columns(s, o.groupBy)
	if err != nil {
		return nil, err
	}

	expr, args := aggregate(col)
	q := r.db.NewSelect().Model((*T)(nil))
	if len(values) > 0 {
		q = q.Column(values...)
	}
	q = q.ColumnExpr(expr+" AS ?", append(args, bun.Ident(name))...)
	if q, err = applyFilters(q, s, filters); err != nil {
		return nil, err
	}
	if len(groupBy) > 0 {
		q = q.Group(groupBy...)
	}
	if q, err = applyOrder(q, s, r.db.Dialect().Name(), o.order, name); err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	s, err := r.Schema()
	if err != nil {
		return nil, err
	}
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if query, err = applyFilters(query, s, pageRequest.GetFilters()); err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	if query, err = applyOrder(query, s, r.db.Dialect().Name(), pageRequest.GetOrders()); err != nil {
		return nil, err
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, payload Payload) (*T, error) {
	entity := new(T)
	in, err := model.NewInstance(r.db, entity)
	if err != nil {
		return nil, err
	}
	if err := in.Assign(payload); err != nil {
		return nil, err
	}
	if err := in.Save(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) BulkCreate(ctx context.Context, payloads []Payload) ([]*T, error) {
	entities := make([]*T, 0, len(payloads))
	for _, payload := range payloads {
		entity := new(T)
		in, err := model.NewInstance(r.db, entity)
		if err != nil {
			return nil, err
		}
		if err := in.Assign(payload); err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if len(entities) == 0 {
		return entities, nil
	}
	if _, err := r.db.NewInsert().Model(&entities).Exec(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) GetOrCreate(ctx context.Context, payload Payload, defaults Payload) (*T, bool, error) {
	if row, err := r.findOne(ctx, payload); err != nil || row != nil {
		return row, false, err
	}

	merged := make(Payload, len(payload)+len(defaults))
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range defaults {
		merged[k] = v
	}
	row, err := r.Create(ctx, merged)
	if err == nil {
		return row, true, nil
	}
	// Lost a race with a concurrent insert of the same row.
	if is, kind := database.IsSqlError(err); is && kind == database.DuplicateKeyErr {
		if found, ferr := r.findOne(ctx, payload); ferr == nil && found != nil {
			return found, false, nil
		}
	}
	return nil, false, err
}

func (r *baseRepositoryImpl[T]) findOne(ctx context.Context, filters Filters) (*T, error) {
	rows, err := r.GetByFilters(ctx, filters, WithLimit(2))
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("multiple rows match %v", filters)
	}
}

func (r *baseRepositoryImpl[T]) UpdateWithFilters(ctx context.Context, row *T, payload Payload, where Filters, updateFields ...string) error {
	if len(where) == 0 {
		if row == nil {
			return fmt.Errorf("update needs a row or a where clause")
		}
		in, err := model.Bind(r.db, row)
		if err != nil {
			return err
		}
		if err := in.Assign(payload); err != nil {
			return err
		}
		return in.Save(ctx, updateFields...)
	}

	if len(payload) == 0 {
		return nil
	}
	s, err := r.Schema()
	if err != nil {
		return err
	}
	q := r.db.NewUpdate().Model((*T)(nil))
	for _, name := range sortedKeys(payload) {
		f, ok := s.Field(name)
		if !ok || f.IsRelation() {
			return fmt.Errorf("%s has no column %q", s.Type.Name(), name)
		}
		v, err := f.Convert(payload[name])
		if err != nil {
			return err
		}
		q = q.Set("? = ?", bun.Ident(f.Column), v)
	}
	if q, err = applyFilters(q, s, where); err != nil {
		return err
	}
	_, err = q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) DeleteWithFilters(ctx context.Context, row *T, where Filters) error {
	if len(where) == 0 {
		if row == nil {
			return fmt.Errorf("delete needs a row or a where clause")
		}
		in, err := model.Bind(r.db, row)
		if err != nil {
			return err
		}
		return in.Delete(ctx)
	}

	s, err := r.Schema()
	if err != nil {
		return err
	}
	q := r.db.NewDelete().Model((*T)(nil))
	if q, err = applyFilters(q, s, where); err != nil {
		return err
	}
	_, err = q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) RawSQL(ctx context.Context, query string, connection string, args ...interface{}) ([]Row, error) {
	db, err := database.GetConnection(connection)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Row, 0)
	if err := db.ScanRows(ctx, rows, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *baseRepositoryImpl[T]) RawSQLScript(ctx context.Context, script string, connection string) error {
	db, err := database.GetConnection(connection)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, script)
	return err
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	entities := make([]*T, len(entity))
	copy(entities, entity)

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	set := make([]string, 0, len(fields))
	args := make([]interface{}, 0, 2*len(fields))
	for _, field := range fields {
		set = append(set, "? = VALUES(?)")
		args = append(args, bun.Ident(field), bun.Ident(field))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE "+strings.Join(set, ", "), args...).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		s, err := r.Schema()
		if err != nil {
			return err
		}
		for _, pk := range s.PKs {
			duplicateKeys = append(duplicateKeys, pk.Column)
		}
	}
	q := r.db.NewInsert().
		Model(&entities).
		On("CONFLICT (?) DO UPDATE", bun.In(idents(duplicateKeys)))
	for _, field := range fields {
		q = q.Set("? = EXCLUDED.?", bun.Ident(field), bun.Ident(field))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}

func idents(names []string) []bun.Ident {
	out := make([]bun.Ident, len(names))
	for i, n := range names {
		out[i] = bun.Ident(n)
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
