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
	"reflect"
	"unicode/utf8"

	"github.com/tomoncle/ormkit/errs"
)

// Kind tags the storage shape handled by a Descriptor.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindText
	KindDatetime
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindText:
		return "text"
	case KindDatetime:
		return "datetime"
	default:
		return "scalar"
	}
}

// Owner is the entity a value is written for.
type Owner interface {
	Persisted() bool
}

// Validator checks a value right before it is written.
type Validator func(field string, value interface{}) error

// Descriptor converts one column between its in-memory and storage forms.
type Descriptor interface {
	Kind() Kind
	ToStorage(value interface{}, owner Owner) (interface{}, error)
	FromStorage(value interface{}) (interface{}, error)
	Validate(field string, value interface{}) error
	SQLType(dialect string) string
}

type validators []Validator

func (v validators) Validate(field string, value interface{}) error {
	for _, check := range v {
		if err := check(field, value); err != nil {
			return err
		}
	}
	return nil
}

// MaxLength rejects strings longer than n characters. Values that are not
// strings are not checked.
func MaxLength(n int) Validator {
	return func(field string, value interface{}) error {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return nil
			}
			s = *v
		default:
			return nil
		}
		if l := utf8.RuneCountInString(s); l > n {
			return errs.Errorf(errs.InvalidValue, "Length of '%s' %d > %d", field, l, n)
		}
		return nil
	}
}

var (
	arrayType     = reflect.TypeOf(Array(nil))
	textArrayType = reflect.TypeOf(TextArray(nil))
	intArrayType  = reflect.TypeOf(IntArray(nil))
	naiveTimeType = reflect.TypeOf(NaiveTime{})
)

// ForType returns the descriptor implied by one of the column types of this
// package, or nil for any other type.
func ForType(typ reflect.Type) Descriptor {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch typ {
	case arrayType:
		return NewArrayField()
	case textArrayType:
		return NewTextArrayField()
	case intArrayType:
		return NewIntArrayField()
	case naiveTimeType:
		return NewNaiveDatetimeField()
	}
	return nil
}
