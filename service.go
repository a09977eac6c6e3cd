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
	"sync"

	"github.com/tomoncle/ormkit/database"
	"github.com/tomoncle/ormkit/model"
	"github.com/tomoncle/ormkit/repository"
	"github.com/tomoncle/ormkit/serializer"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns a single entity by its primary key.
	Get(ctx context.Context, id any) (*T, error)

	// List returns the entities matching filters.
	List(ctx context.Context, filters repository.Filters, opts ...repository.QueryOption) ([]*T, error)

	// Count returns the number of entities matching filters.
	Count(ctx context.Context, filters repository.Filters, opts ...repository.QueryOption) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Create inserts an entity built from payload.
	Create(ctx context.Context, payload repository.Payload) (*T, error)

	// GetOrCreate returns the entity matching payload, creating it when absent.
	GetOrCreate(ctx context.Context, payload, defaults repository.Payload) (*T, bool, error)

	// Update assigns payload to row and saves it, or bulk updates by where.
	Update(ctx context.Context, row *T, payload repository.Payload, where repository.Filters, fields ...string) error

	// Delete removes row, or every entity matching where.
	Delete(ctx context.Context, row *T, where repository.Filters) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error

	// Dict serializes row with its relations one level deep.
	Dict(ctx context.Context, row *T, opts ...serializer.Option) (*types.Mapping, error)

	// Dicts serializes every entity matching filters.
	Dicts(ctx context.Context, filters repository.Filters, query []repository.QueryOption, opts ...serializer.Option) ([]*types.Mapping, error)

	// WithTx returns a service bound to tx.
	WithTx(tx bun.Tx) Service[T]

	// Repository exposes the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	db   bun.IDB
	repo repository.Repository[T]
	once sync.Once
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

// NewServiceWithDB binds the service to db, which may be a transaction.
func NewServiceWithDB[T any](db bun.IDB) Service[T] {
	return &baseServiceImpl[T]{db: db}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() {
		if s.db == nil {
			s.db = database.GetDB()
		}
		s.repo = repository.NewRepository[T](s.db)
	})
	return s.repo
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.baseRepo()
}

func (s *baseServiceImpl[T]) WithTx(tx bun.Tx) Service[T] {
	return NewServiceWithDB[T](tx)
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.baseRepo().GetOne(ctx, id)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filters repository.Filters, opts ...repository.QueryOption) ([]*T, error) {
	return s.baseRepo().GetByFilters(ctx, filters, opts...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filters repository.Filters, opts ...repository.QueryOption) (int, error) {
	return s.baseRepo().CountByFilters(ctx, filters, opts...)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return s.baseRepo().Page(ctx, page)
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, payload repository.Payload) (*T, error) {
	return s.baseRepo().Create(ctx, payload)
}

func (s *baseServiceImpl[T]) GetOrCreate(ctx context.Context, payload, defaults repository.Payload) (*T, bool, error) {
	return s.baseRepo().GetOrCreate(ctx, payload, defaults)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, row *T, payload repository.Payload, where repository.Filters, fields ...string) error {
	return s.baseRepo().UpdateWithFilters(ctx, row, payload, where, fields...)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, row *T, where repository.Filters) error {
	return s.baseRepo().DeleteWithFilters(ctx, row, where)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, duplicateKeys, entities...)
}

func (s *baseServiceImpl[T]) Dict(ctx context.Context, row *T, opts ...serializer.Option) (*types.Mapping, error) {
	in, err := model.Bind(s.baseRepo().DB(), row)
	if err != nil {
		return nil, err
	}
	return serializer.ToDict(ctx, in, opts...)
}

func (s *baseServiceImpl[T]) Dicts(ctx context.Context, filters repository.Filters, query []repository.QueryOption, opts ...serializer.Option) ([]*types.Mapping, error) {
	rows, err := s.List(ctx, filters, query...)
	if err != nil {
		return nil, err
	}
	instances, err := model.BindAll(s.baseRepo().DB(), rows)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Mapping, 0, len(instances))
	for _, in := range instances {
		m, err := serializer.ToDict(ctx, in, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
