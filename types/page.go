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

package types

// Filters maps a column, optionally suffixed with a lookup such as
// "age__gte" or "id__in", to the value it is compared against.
type Filters map[string]interface{}

// PageRequest describes pagination, optional filters, and ordering.
type PageRequest struct {
	page     int
	pageSize int
	filters  Filters
	orders   []string // "id", "-created_at"
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetFilters() Filters {
	return p.filters
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

// NewPageRequest constructs a PageRequest with filters and order settings.
func NewPageRequest(page int, pageSize int, filters Filters, orders []string) *PageRequest {
	return &PageRequest{page, pageSize, filters, orders}
}

// NewPageRequestWithFilters constructs a PageRequest with filters only.
func NewPageRequestWithFilters(page int, pageSize int, filters Filters) *PageRequest {
	return NewPageRequest(page, pageSize, filters, make([]string, 0))
}

// NewDefaultPageRequest constructs a PageRequest with no filters or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, make([]string, 0))
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}
