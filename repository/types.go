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

	"github.com/tomoncle/ormkit/model"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Payload maps field names to the values assigned to them.
type Payload = map[string]interface{}

// Row is one projected or raw result row keyed by column.
type Row = map[string]interface{}

// QueryRepository reads entities and projections by filters.
type QueryRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	// GetByFilters returns matching entities, at most DefaultLimit unless
	// WithLimit says otherwise.
	GetByFilters(ctx context.Context, filters Filters, opts ...QueryOption) ([]*T, error)

	CountByFilters(ctx context.Context, filters Filters, opts ...QueryOption) (int, error)

	// ValuesByFilters returns only the given columns of each matching row.
	ValuesByFilters(ctx context.Context, filters Filters, columns ...string) ([]Row, error)

	// AnnotateByFilters computes function over column for the matching rows,
	// per group when WithGroupBy is given. The result column is named after
	// the lower-cased function name.
	AnnotateByFilters(ctx context.Context, filters Filters, column string, function interface{}, opts ...AnnotateOption) ([]Row, error)
}

// MutationRepository creates, updates, and deletes entities.
type MutationRepository[T any] interface {
	Create(ctx context.Context, payload Payload) (*T, error)

	BulkCreate(ctx context.Context, payloads []Payload) ([]*T, error)

	// GetOrCreate returns the row matching payload, creating it with payload
	// and defaults when none exists.
	GetOrCreate(ctx context.Context, payload Payload, defaults Payload) (*T, bool, error)

	// UpdateWithFilters bulk updates the rows matching where. With an empty
	// where it assigns payload to row and saves updateFields, or every field.
	UpdateWithFilters(ctx context.Context, row *T, payload Payload, where Filters, updateFields ...string) error

	// DeleteWithFilters bulk deletes the rows matching where, or row itself
	// when where is empty.
	DeleteWithFilters(ctx context.Context, row *T, where Filters) error

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// RawRepository runs literal SQL on a named connection; "" means "default".
type RawRepository interface {
	RawSQL(ctx context.Context, query string, connection string, args ...interface{}) ([]Row, error)
	RawSQLScript(ctx context.Context, script string, connection string) error
}

// TransactionRepository rebinds a repository to a transaction.
type TransactionRepository[T any] interface {
	WithTx(tx bun.Tx) Repository[T]
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error
}

// Repository combines every query wrapper operation and exposes the bun
// query builders for anything else.
type Repository[T any] interface {
	QueryRepository[T]
	MutationRepository[T]
	PageQueryRepository[T]
	RawRepository
	TransactionRepository[T]
	DB() bun.IDB
	Schema() (*model.Schema, error)
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
