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

// DefaultLimit caps GetByFilters when no limit option is given.
const DefaultLimit = 100

type queryOptions struct {
	order    []string
	limit    int
	limitSet bool
	offset   int
	only     []string
}

// QueryOption configures GetByFilters and CountByFilters.
type QueryOption func(*queryOptions)

// WithOrder sets the order terms: "name", "-name", or "random".
func WithOrder(terms ...string) QueryOption {
	return func(o *queryOptions) { o.order = append(o.order, terms...) }
}

// WithLimit caps the number of rows. Zero removes the limit.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) { o.limit, o.limitSet = n, true }
}

func WithOffset(n int) QueryOption {
	return func(o *queryOptions) { o.offset = n }
}

// WithOnly loads only the given columns.
func WithOnly(columns ...string) QueryOption {
	return func(o *queryOptions) { o.only = append(o.only, columns...) }
}

func newQueryOptions(defaultLimit int, opts []QueryOption) *queryOptions {
	o := &queryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if !o.limitSet {
		o.limit = defaultLimit
	}
	return o
}

type annotateOptions struct {
	groupBy []string
	order   []string
	values  []string
}

// AnnotateOption configures AnnotateByFilters.
type AnnotateOption func(*annotateOptions)

func WithGroupBy(columns ...string) AnnotateOption {
	return func(o *annotateOptions) { o.groupBy = append(o.groupBy, columns...) }
}

// WithAnnotateOrder orders the aggregate rows. The aggregate's own name is a
// valid term.
func WithAnnotateOrder(terms ...string) AnnotateOption {
	return func(o *annotateOptions) { o.order = append(o.order, terms...) }
}

// WithValues adds columns to each aggregate row.
func WithValues(columns ...string) AnnotateOption {
	return func(o *annotateOptions) { o.values = append(o.values, columns...) }
}
