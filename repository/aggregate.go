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
	"runtime"
	"strings"

	"github.com/tomoncle/ormkit/errs"
	"github.com/uptrace/bun"
)

// AggregateFunc renders an aggregate over a column. The lower-cased function
// name becomes the output column, so it must be a named function.
type AggregateFunc func(column string) (expr string, args []interface{})

// Aggregate is an aggregate that names itself.
type Aggregate interface {
	Name() string
	Expr(column string) (string, []interface{})
}

func Max(column string) (string, []interface{}) {
	return "MAX(?)", []interface{}{bun.Ident(column)}
}

func Min(column string) (string, []interface{}) {
	return "MIN(?)", []interface{}{bun.Ident(column)}
}

func Count(column string) (string, []interface{}) {
	return "COUNT(?)", []interface{}{bun.Ident(column)}
}

func Sum(column string) (string, []interface{}) {
	return "SUM(?)", []interface{}{bun.Ident(column)}
}

func Avg(column string) (string, []interface{}) {
	return "AVG(?)", []interface{}{bun.Ident(column)}
}

// resolveAggregate returns the output name and expression builder of function.
func resolveAggregate(function interface{}) (string, AggregateFunc, error) {
	switch fn := function.(type) {
	case Aggregate:
		if name := strings.ToLower(fn.Name()); name != "" {
			return name, fn.Expr, nil
		}
	case AggregateFunc:
		if fn != nil {
			if name := funcName(fn); name != "" {
				return name, fn, nil
			}
		}
	case func(string) (string, []interface{}):
		if fn != nil {
			if name := funcName(fn); name != "" {
				return name, fn, nil
			}
		}
	}
	return "", nil, errs.Errorf(errs.BadRequest, "Invalid function name: %v", describe(function))
}

// funcName returns the lower-cased declared name of fn, or "" for closures.
func funcName(fn interface{}) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if isClosureName(name) {
		return ""
	}
	return strings.ToLower(name)
}

// isClosureName matches the "func1" and "1" suffixes the runtime gives
// anonymous functions.
func isClosureName(name string) bool {
	rest := strings.TrimPrefix(name, "func")
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func describe(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return fmt.Sprintf("<%T>", v)
	}
	return fmt.Sprintf("%v", v)
}
