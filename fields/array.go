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

package fields

import (
	"database/sql/driver"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/tomoncle/ormkit/errs"
)

type elemKind int

const (
	elemAny elemKind = iota
	elemText
	elemInt
)

// ArrayField stores a sequence as a JSON document.
type ArrayField struct {
	elem elemKind
	validators
}

var _ Descriptor = (*ArrayField)(nil)

func NewArrayField() *ArrayField     { return &ArrayField{elem: elemAny} }
func NewTextArrayField() *ArrayField { return &ArrayField{elem: elemText} }
func NewIntArrayField() *ArrayField  { return &ArrayField{elem: elemInt} }

func (f *ArrayField) Kind() Kind { return KindArray }

// AddValidator appends a write-time check.
func (f *ArrayField) AddValidator(v Validator) *ArrayField {
	f.validators = append(f.validators, v)
	return f
}

// ToStorage passes sequences and sets through unchanged. Values for an owner
// that has not been inserted yet are passed through without inspection so the
// first insert can apply its own defaults.
func (f *ArrayField) ToStorage(value interface{}, owner Owner) (interface{}, error) {
	if owner != nil && !owner.Persisted() {
		return value, nil
	}
	if value == nil {
		return nil, nil
	}
	if isIterable(value) {
		return value, nil
	}
	return nil, errs.New(errs.InvalidValue, "non-iterable value provided for ArrayField")
}

// FromStorage returns sequences unchanged and decodes JSON text otherwise.
func (f *ArrayField) FromStorage(value interface{}) (interface{}, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		if reflect.ValueOf(value).Kind() == reflect.Slice {
			return value, nil
		}
		return nil, errs.Errorf(errs.InvalidValue, "cannot load %T into ArrayField", value)
	}

	var err error
	var out interface{}
	switch f.elem {
	case elemText:
		var items []string
		err = json.Unmarshal(raw, &items)
		out = items
	case elemInt:
		var items []int64
		err = json.Unmarshal(raw, &items)
		out = items
	default:
		var items []interface{}
		err = json.Unmarshal(raw, &items)
		out = items
	}
	if err != nil {
		return nil, errs.Errorf(errs.JSONDecode, "decode ArrayField: %w", err)
	}
	return out, nil
}

func (f *ArrayField) SQLType(dialect string) string {
	switch dialect {
	case "pg":
		return "jsonb"
	case "mysql":
		return "json"
	default:
		return "text"
	}
}

func isIterable(value interface{}) bool {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return true
	case reflect.Map:
		elem := rv.Type().Elem()
		return elem.Kind() == reflect.Bool || (elem.Kind() == reflect.Struct && elem.NumField() == 0)
	}
	return false
}

// Array is a column holding a JSON array of arbitrary values.
type Array []interface{}

func (a Array) Value() (driver.Value, error) { return encodeArray(a == nil, a) }

func (a *Array) Scan(src interface{}) error {
	v, err := NewArrayField().FromStorage(src)
	if err != nil {
		return err
	}
	items, _ := v.([]interface{})
	*a = items
	return nil
}

// TextArray is a column holding a JSON array of strings.
type TextArray []string

func (a TextArray) Value() (driver.Value, error) { return encodeArray(a == nil, a) }

func (a *TextArray) Scan(src interface{}) error {
	v, err := NewTextArrayField().FromStorage(src)
	if err != nil {
		return err
	}
	items, _ := v.([]string)
	*a = items
	return nil
}

// IntArray is a column holding a JSON array of integers.
type IntArray []int64

func (a IntArray) Value() (driver.Value, error) { return encodeArray(a == nil, a) }

func (a *IntArray) Scan(src interface{}) error {
	v, err := NewIntArrayField().FromStorage(src)
	if err != nil {
		return err
	}
	items, _ := v.([]int64)
	*a = items
	return nil
}

func encodeArray(isNil bool, v interface{}) (driver.Value, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
