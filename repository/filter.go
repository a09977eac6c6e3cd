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
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/ormkit/model"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Filters maps "column" or "column__lookup" to a value.
type Filters = types.Filters

const lookupSep = "__"

type lookupFunc func(col bun.Ident, value interface{}) (string, []interface{})

var lookups = map[string]lookupFunc{
	"exact": func(col bun.Ident, v interface{}) (string, []interface{}) {
		if isNil(v) {
			return "? IS NULL", []interface{}{col}
		}
		return "? = ?", []interface{}{col, v}
	},
	"not": func(col bun.Ident, v interface{}) (string, []interface{}) {
		if isNil(v) {
			return "? IS NOT NULL", []interface{}{col}
		}
		return "? != ?", []interface{}{col, v}
	},
	"in": func(col bun.Ident, v interface{}) (string, []interface{}) {
		if listLen(v) == 0 {
			return "1 = 0", nil
		}
		return "? IN (?)", []interface{}{col, bun.In(v)}
	},
	"not_in": func(col bun.Ident, v interface{}) (string, []interface{}) {
		if listLen(v) == 0 {
			return "1 = 1", nil
		}
		return "? NOT IN (?)", []interface{}{col, bun.In(v)}
	},
	"gt":  compare(">"),
	"gte": compare(">="),
	"lt":  compare("<"),
	"lte": compare("<="),
	"contains": func(col bun.Ident, v interface{}) (string, []interface{}) {
		return like(col, "%"+escapeLike(v)+"%", false)
	},
	"icontains": func(col bun.Ident, v interface{}) (string, []interface{}) {
		return like(col, "%"+escapeLike(v)+"%", true)
	},
	"startswith": func(col bun.Ident, v interface{}) (string, []interface{}) {
		return like(col, escapeLike(v)+"%", false)
	},
	"endswith": func(col bun.Ident, v interface{}) (string, []interface{}) {
		return like(col, "%"+escapeLike(v), false)
	},
	"isnull": func(col bun.Ident, v interface{}) (string, []interface{}) {
		if b, ok := v.(bool); ok && !b {
			return "? IS NOT NULL", []interface{}{col}
		}
		return "? IS NULL", []interface{}{col}
	},
}

func compare(op string) lookupFunc {
	return func(col bun.Ident, v interface{}) (string, []interface{}) {
		return "? " + op + " ?", []interface{}{col, v}
	}
}

// '!' is the LIKE escape character: it needs no quoting in any supported dialect.
func like(col bun.Ident, pattern string, fold bool) (string, []interface{}) {
	if fold {
		return "LOWER(?) LIKE ? ESCAPE '!'", []interface{}{col, strings.ToLower(pattern)}
	}
	return "? LIKE ? ESCAPE '!'", []interface{}{col, pattern}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(v interface{}) string {
	return likeEscaper.Replace(fmt.Sprint(v))
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// listLen counts the values of an in or not_in operand. A nil operand counts
// as empty, a scalar as one value.
func listLen(v interface{}) int {
	if isNil(v) {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 1
}

// splitLookup splits "name__gte" into ("name", "gte"). A key whose suffix is
// not a known lookup is treated as a plain column name.
func splitLookup(key string) (string, string) {
	if i := strings.LastIndex(key, lookupSep); i > 0 {
		if _, ok := lookups[key[i+len(lookupSep):]]; ok {
			return key[:i], key[i+len(lookupSep):]
		}
	}
	return key, "exact"
}

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// applyFilters adds one WHERE condition per filter key, in sorted key order.
func applyFilters[Q whereQuery[Q]](q Q, s *model.Schema, filters Filters) (Q, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name, op := splitLookup(key)
		col, err := s.Column(name)
		if err != nil {
			return q, err
		}
		expr, args := lookups[op](bun.Ident(col), filters[key])
		q = q.Where(expr, args...)
	}
	return q, nil
}

// RandomOrder is the order term that sorts rows randomly.
const RandomOrder = "random"

type orderQuery[Q any] interface {
	OrderExpr(query string, args ...interface{}) Q
}

// applyOrder adds ORDER BY terms. "name" sorts ascending, "-name" descending,
// and "random" uses the dialect's random function. aliases are output names,
// such as aggregates, that may be ordered by without being columns.
func applyOrder[Q orderQuery[Q]](q Q, s *model.Schema, d dialect.Name, terms []string, aliases ...string) (Q, error) {
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if term == RandomOrder {
			q = q.OrderExpr(randomFunc(d))
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(term, "-") {
			dir, term = "DESC", term[1:]
		}
		col, err := orderColumn(s, term, aliases)
		if err != nil {
			return q, err
		}
		q = q.OrderExpr("? "+dir, bun.Ident(col))
	}
	return q, nil
}

func orderColumn(s *model.Schema, name string, aliases []string) (string, error) {
	for _, a := range aliases {
		if a == name {
			return name, nil
		}
	}
	return s.Column(name)
}

func randomFunc(d dialect.Name) string {
	if d == dialect.MySQL {
		return "RAND()"
	}
	return "RANDOM()"
}

func columns(s *model.Schema, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		col, err := s.Column(n)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}
