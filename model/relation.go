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
	"context"
	"errors"

	"github.com/tomoncle/ormkit/types"
)

// ErrNotFetched is returned when related data is read before it was fetched.
var ErrNotFetched = errors.New("related data has not been fetched")

// Entity is what the serializer needs from a loaded row.
type Entity interface {
	// FieldNames lists every declared field, relations included, in
	// declaration order.
	FieldNames() []string
	// SerializableKeys returns the model's preferred output keys, or nil.
	SerializableKeys() []string
	ToOneFields() []string
	ToManyFields() []string
	// Attr returns the serialized current value of name. Unknown names yield
	// null; ok is false when the value has no serializable form.
	Attr(name string) (v types.Value, ok bool)
	// ToOne returns the related entity of a to-one relation. loaded is false
	// until the relation has been fetched; target is nil when no row is related.
	ToOne(name string) (target Entity, loaded bool)
	// ToMany returns the related entities of a to-many relation in fetch
	// order. loaded is false until the relation has been fetched.
	ToMany(name string) (targets []Entity, loaded bool)
	FetchRelated(ctx context.Context, name string) error
}

// RelationState is the load state of a relation handle.
type RelationState int

const (
	Unloaded RelationState = iota
	Loading
	Loaded
)

func (s RelationState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Relation tracks whether the data behind one relation field was fetched. The
// data itself stays in the model struct, where bun writes it.
type Relation struct {
	field *Field
	state RelationState
}

func newRelation(f *Field, state RelationState) *Relation {
	return &Relation{field: f, state: state}
}

func (r *Relation) Field() *Field { return r.field }

func (r *Relation) State() RelationState { return r.state }

func (r *Relation) Loaded() bool { return r.state == Loaded }

func (r *Relation) begin() { r.state = Loading }

func (r *Relation) finish(err error) {
	if err != nil {
		r.state = Unloaded
		return
	}
	r.state = Loaded
}
