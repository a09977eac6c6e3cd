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

package model

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/tomoncle/ormkit/fields"
	"github.com/tomoncle/ormkit/types"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/tagparser/v2"
)

// RelationKind classifies a relation field by the bun "rel" tag option.
type RelationKind int

const (
	NoRelation RelationKind = iota
	BelongsTo
	HasOne
	HasMany
	ManyToMany
)

var relationKinds = map[string]RelationKind{
	"belongs-to": BelongsTo,
	"has-one":    HasOne,
	"has-many":   HasMany,
	"m2m":        ManyToMany,
}

func (k RelationKind) String() string {
	for name, kind := range relationKinds {
		if kind == k {
			return name
		}
	}
	return "none"
}

// Describer lets a model attach descriptors to fields whose Go type does not
// imply one, such as bounded text columns.
type Describer interface {
	Descriptors() map[string]fields.Descriptor
}

// Field is one entry of the accessor table of a model type.
type Field struct {
	Name       string
	GoName     string
	Column     string
	SQLType    string
	Index      []int
	Type       reflect.Type
	IsPK       bool
	Relation   RelationKind
	Descriptor fields.Descriptor
	// JoinBase and JoinTarget are the columns of a "join:base=target"
	// relation option, empty when the bun defaults apply.
	JoinBase   string
	JoinTarget string
}

func (f *Field) IsRelation() bool { return f.Relation != NoRelation }

// IsToOne reports whether f is a forward foreign key or a one-to-one relation.
func (f *Field) IsToOne() bool { return f.Relation == BelongsTo || f.Relation == HasOne }

// IsToMany reports whether f is a reverse foreign key.
func (f *Field) IsToMany() bool { return f.Relation == HasMany }

// Value returns the field of strct, which must be a struct value of the
// schema's type.
func (f *Field) Value(strct reflect.Value) reflect.Value {
	return strct.FieldByIndex(f.Index)
}

// Get returns the current Go value of the field.
func (f *Field) Get(strct reflect.Value) interface{} {
	return f.Value(strct).Interface()
}

// Set assigns value to the field, converting between compatible types.
func (f *Field) Set(strct reflect.Value, value interface{}) error {
	if err := assign(f.Value(strct), value); err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	return nil
}

// Convert returns value as the field's Go type, so bun encodes it the same
// way it encodes a loaded column.
func (f *Field) Convert(value interface{}) (interface{}, error) {
	dst := reflect.New(f.Type).Elem()
	if err := assign(dst, value); err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return dst.Interface(), nil
}

// Serialize converts the current value into a types.Value. Relation fields and
// values without a serializable form report false.
func (f *Field) Serialize(strct reflect.Value) (types.Value, bool) {
	if f.IsRelation() {
		return types.Value{}, false
	}
	rv := f.Value(strct)
	if strings.EqualFold(f.SQLType, "date") {
		if t, ok := rv.Interface().(time.Time); ok {
			if t.IsZero() {
				return types.NullValue(), true
			}
			return types.DateValue(t), true
		}
	}
	return types.From(rv.Interface())
}

// Schema is the accessor table of a model type, built once per type.
type Schema struct {
	Type             reflect.Type
	Fields           []*Field
	PKs              []*Field
	FKFields         []string
	O2OFields        []string
	BackwardFKFields []string
	fieldMap         map[string]*Field
}

var (
	schemaCache   sync.Map
	baseModelType = reflect.TypeOf(bun.BaseModel{})
	scannerType   = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// SchemaOf returns the schema of a model struct, pointer to struct, or slice
// of either.
func SchemaOf(model interface{}) (*Schema, error) {
	typ := reflect.TypeOf(model)
	if typ == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	return SchemaFor(typ)
}

// SchemaFor returns the cached schema of typ, building it on first use.
func SchemaFor(typ reflect.Type) (*Schema, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", typ)
	}
	if s, ok := schemaCache.Load(typ); ok {
		return s.(*Schema), nil
	}
	s, err := buildSchema(typ)
	if err != nil {
		return nil, err
	}
	actual, _ := schemaCache.LoadOrStore(typ, s)
	return actual.(*Schema), nil
}

func buildSchema(typ reflect.Type) (*Schema, error) {
	s := &Schema{Type: typ, fieldMap: make(map[string]*Field)}
	if err := s.addFields(typ, nil); err != nil {
		return nil, err
	}

	var described map[string]fields.Descriptor
	if d, ok := reflect.New(typ).Interface().(Describer); ok {
		described = d.Descriptors()
	}

	for _, f := range s.Fields {
		if d, ok := described[f.Name]; ok {
			f.Descriptor = d
		} else if !f.IsRelation() {
			f.Descriptor = fields.ForType(f.Type)
		}
		switch f.Relation {
		case BelongsTo:
			s.FKFields = append(s.FKFields, f.Name)
		case HasOne:
			s.O2OFields = append(s.O2OFields, f.Name)
		case HasMany:
			s.BackwardFKFields = append(s.BackwardFKFields, f.Name)
		}
		if f.IsPK {
			s.PKs = append(s.PKs, f)
		}
	}
	for name := range described {
		if _, ok := s.fieldMap[name]; !ok {
			return nil, fmt.Errorf("%s: descriptor for unknown field %q", typ, name)
		}
	}
	return s, nil
}

func (s *Schema) addFields(typ reflect.Type, prefix []int) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Type == baseModelType {
			continue
		}
		raw, hasTag := sf.Tag.Lookup("bun")
		if raw == "-" {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct && !reflect.PtrTo(sf.Type).Implements(scannerType) {
			if err := s.addFields(sf.Type, index); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tag := tagparser.Parse(raw)
		f := &Field{
			GoName: sf.Name,
			Index:  index,
			Type:   sf.Type,
			IsPK:   tag.HasOption("pk"),
		}
		f.SQLType = tag.Options["type"]

		if rel, ok := tag.Options["rel"]; ok {
			kind, known := relationKinds[rel]
			if !known {
				return fmt.Errorf("%s.%s: unknown relation %q", typ, sf.Name, rel)
			}
			f.Relation = kind
			f.Name = strcase.ToSnake(sf.Name)
			if join, ok := tag.Options["join"]; ok {
				base, target, found := strings.Cut(join, "=")
				if !found || base == "" || target == "" {
					return fmt.Errorf("%s.%s: invalid join %q", typ, sf.Name, join)
				}
				f.JoinBase, f.JoinTarget = base, target
			}
		} else {
			f.Column = tag.Name
			if f.Column == "" {
				f.Column = strcase.ToSnake(sf.Name)
			}
			f.Name = f.Column
		}

		if _, dup := s.fieldMap[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %q", typ, f.Name)
		}
		s.Fields = append(s.Fields, f)
		s.fieldMap[f.Name] = f
		if _, taken := s.fieldMap[f.GoName]; !taken {
			s.fieldMap[f.GoName] = f
		}
	}
	return nil
}

// Field looks a field up by name, column, or Go name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fieldMap[name]
	return f, ok
}

// FieldNames returns every field name in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns the column names of the non-relation fields.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.IsRelation() {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// Column resolves a field name to its column name. "pk" names the first
// primary key.
func (s *Schema) Column(name string) (string, error) {
	if name == "pk" && len(s.PKs) > 0 {
		return s.PKs[0].Column, nil
	}
	f, ok := s.fieldMap[name]
	if !ok {
		return "", fmt.Errorf("%s has no field %q", s.Type.Name(), name)
	}
	if f.IsRelation() {
		return "", fmt.Errorf("%s.%s is a relation, not a column", s.Type.Name(), name)
	}
	return f.Column, nil
}

// ToOneFields returns the forward foreign key and one-to-one relation names.
func (s *Schema) ToOneFields() []string {
	out := make([]string, 0, len(s.FKFields)+len(s.O2OFields))
	for _, f := range s.Fields {
		if f.IsToOne() {
			out = append(out, f.Name)
		}
	}
	return out
}

// ToManyFields returns the reverse foreign key relation names.
func (s *Schema) ToManyFields() []string {
	out := make([]string, len(s.BackwardFKFields))
	copy(out, s.BackwardFKFields)
	return out
}

func assign(dst reflect.Value, value interface{}) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	dt := dst.Type()
	if src.Type().AssignableTo(dt) {
		dst.Set(src)
		return nil
	}
	if dt.Kind() == reflect.Ptr {
		p := reflect.New(dt.Elem())
		if err := assign(p.Elem(), value); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if convertible(src.Type(), dt) {
		dst.Set(src.Convert(dt))
		return nil
	}
	if dst.CanAddr() {
		if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(value)
		}
	}
	return fmt.Errorf("cannot assign %T to %s", value, dt)
}

// convertible rejects the integer-to-string conversion reflect allows.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return false
	}
	if from.Kind() == reflect.String && to.Kind() != reflect.String {
		return false
	}
	return true
}
