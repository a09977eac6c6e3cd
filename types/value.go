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

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindSequence
	KindSet
	KindMapping
	KindDate
	KindDateTime
	KindUUID
)

var kindNames = [...]string{
	KindNull:     "null",
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindSequence: "sequence",
	KindSet:      "set",
	KindMapping:  "mapping",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindUUID:     "uuid",
}

// Enum is implemented by Kind. Out-of-range kinds report the invalid
// number and name below.
type Enum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

var _ Enum = KindNull

func (k Kind) IsValid() bool { return k >= KindNull && k <= KindUUID }

func (k Kind) Number() int {
	if !k.IsValid() {
		return IllegalValue
	}
	return int(k)
}

func (k Kind) Name() string {
	if !k.IsValid() {
		return IllegalName
	}
	return kindNames[k]
}

func (k Kind) String() string { return k.Name() }

func (k Kind) Desc() string {
	if !k.IsValid() {
		return IllegalDesc
	}
	return "serializable " + kindNames[k] + " value"
}

const dateLayout = "2006-01-02"

// Value is a JSON-safe value. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	u    uuid.UUID
	seq  []Value
	m    *Mapping
}

func NullValue() Value                { return Value{} }
func StringValue(s string) Value      { return Value{kind: KindString, s: s} }
func IntValue(i int64) Value          { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value      { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value          { return Value{kind: KindBool, b: b} }
func DateTimeValue(t time.Time) Value { return Value{kind: KindDateTime, t: t} }
func UUIDValue(u uuid.UUID) Value     { return Value{kind: KindUUID, u: u} }

// DateValue keeps only the calendar date of t.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func SequenceValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

func SetValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSet, seq: items}
}

func MappingValue(m *Mapping) Value {
	if m == nil {
		return NullValue()
	}
	return Value{kind: KindMapping, m: m}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) Str() string       { return v.s }
func (v Value) Int() int64        { return v.i }
func (v Value) Float() float64    { return v.f }
func (v Value) Bool() bool        { return v.b }
func (v Value) Time() time.Time   { return v.t }
func (v Value) UUID() uuid.UUID   { return v.u }
func (v Value) Items() []Value    { return v.seq }
func (v Value) Mapping() *Mapping { return v.m }

// Interface returns the plain Go form of v: nil, string, int64, float64, bool,
// time.Time, uuid.UUID, []interface{} or map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate, KindDateTime:
		return v.t
	case KindUUID:
		return v.u
	case KindSequence, KindSet:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Interface()
		}
		return out
	case KindMapping:
		return v.m.Map()
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindDate:
		return json.Marshal(v.t.Format(dateLayout))
	case KindDateTime:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	case KindUUID:
		return json.Marshal(v.u.String())
	case KindSequence, KindSet:
		return json.Marshal(v.seq)
	case KindMapping:
		return v.m.MarshalJSON()
	default:
		return json.Marshal(v.Interface())
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindDate:
		return v.t.Format(dateLayout)
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindString:
		return v.s
	}
	return fmt.Sprint(v.Interface())
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	valueType = reflect.TypeOf(Value{})
	emptyType = reflect.TypeOf(struct{}{})
)

// From converts a Go value into a Value. It reports false when x, or any
// element nested in it, has no serializable form.
func From(x interface{}) (Value, bool) {
	if x == nil {
		return NullValue(), true
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, bool) {
	if !rv.IsValid() {
		return NullValue(), true
	}
	switch rv.Type() {
	case valueType:
		return rv.Interface().(Value), true
	case timeType:
		return DateTimeValue(rv.Interface().(time.Time)), true
	case uuidType:
		return UUIDValue(rv.Interface().(uuid.UUID)), true
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return NullValue(), true
		}
		if rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Struct {
			if v, ok := fromValuer(rv); ok {
				return v, true
			}
		}
		return fromReflect(rv.Elem())
	case reflect.String:
		return StringValue(rv.String()), true
	case reflect.Bool:
		return BoolValue(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return Value{}, false
		}
		return IntValue(int64(rv.Uint())), true
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), true
	case reflect.Slice:
		if rv.IsNil() {
			return NullValue(), true
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Value{}, false
		}
		return fromList(rv, SequenceValue)
	case reflect.Array:
		return fromList(rv, SequenceValue)
	case reflect.Map:
		if rv.IsNil() {
			return NullValue(), true
		}
		return fromMap(rv)
	case reflect.Struct:
		return fromValuer(rv)
	}
	return Value{}, false
}

// fromValuer handles nullable wrappers such as sql.NullString or null.String.
func fromValuer(rv reflect.Value) (Value, bool) {
	if !rv.CanInterface() {
		return Value{}, false
	}
	valuer, ok := rv.Interface().(driver.Valuer)
	if !ok {
		return Value{}, false
	}
	raw, err := valuer.Value()
	if err != nil {
		return Value{}, false
	}
	switch raw.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return From(raw)
	}
	return Value{}, false
}

func fromList(rv reflect.Value, build func([]Value) Value) (Value, bool) {
	items := make([]Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, ok := fromReflect(rv.Index(i))
		if !ok {
			return Value{}, false
		}
		items[i] = item
	}
	return build(items), true
}

func fromMap(rv reflect.Value) (Value, bool) {
	typ := rv.Type()
	if typ.Elem() == emptyType {
		keys := rv.MapKeys()
		items := make([]Value, 0, len(keys))
		for _, k := range keys {
			item, ok := fromReflect(k)
			if !ok {
				return Value{}, false
			}
			items = append(items, item)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].String() < items[j].String() })
		return SetValue(items), true
	}
	if typ.Key().Kind() != reflect.String {
		return Value{}, false
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	m := NewMapping()
	for _, k := range keys {
		item, ok := fromReflect(rv.MapIndex(reflect.ValueOf(k).Convert(typ.Key())))
		if !ok {
			return Value{}, false
		}
		m.Set(k, item)
	}
	return MappingValue(m), true
}
