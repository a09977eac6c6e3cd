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

package serializer

import (
	"context"
	"fmt"

	"github.com/tomoncle/ormkit/database"
	"github.com/tomoncle/ormkit/model"
	"github.com/tomoncle/ormkit/types"
)

type options struct {
	filterKeys    []string
	related       bool
	relatedFields []string
}

// Option configures a single ToDict call.
type Option func(*options)

// WithFilterKeys limits the output to the given keys, in the given order.
func WithFilterKeys(keys ...string) Option {
	return func(o *options) { o.filterKeys = keys }
}

// WithRelated toggles relation resolving. It is on by default.
func WithRelated(enabled bool) Option {
	return func(o *options) { o.related = enabled }
}

// WithRelatedFields restricts which relations are resolved.
func WithRelatedFields(names ...string) Option {
	return func(o *options) { o.relatedFields = names }
}

// ToDict converts e into an ordered mapping of serializable values.
//
// Keys come from WithFilterKeys, else the entity's serializable keys, else
// every declared field. When relations are enabled, to-many relations are
// fetched on demand and each related entity is serialized one level deep;
// to-one relations are fetched when not cached and serialized the same way.
// Values outside the serializable kinds are left out of the result.
func ToDict(ctx context.Context, e model.Entity, opts ...Option) (*types.Mapping, error) {
	o := &options{related: true}
	for _, opt := range opts {
		opt(o)
	}

	toOne := toSet(e.ToOneFields())
	toMany := toSet(e.ToManyFields())
	related := toSet(o.relatedFields)
	if len(related) == 0 {
		related = union(toOne, toMany)
	}

	out := types.NewMapping()
	for _, key := range candidateKeys(e, o.filterKeys) {
		var (
			v   types.Value
			ok  bool
			err error
		)
		if o.related && toMany[key] && related[key] {
			v, err = serializeMany(ctx, e, key)
			ok = true
		} else {
			v, ok = e.Attr(key)
		}
		if err != nil {
			return nil, err
		}

		if o.related && toOne[key] && related[key] {
			if v, err = serializeOne(ctx, e, key); err != nil {
				return nil, err
			}
			ok = true
		}

		if !ok {
			database.GetLogger().Debug("Dropping non-serializable field", "field", key)
			out.Delete(key)
			continue
		}
		out.Set(key, v)
	}
	return out, nil
}

func candidateKeys(e model.Entity, filterKeys []string) []string {
	if len(filterKeys) > 0 {
		return filterKeys
	}
	if keys := e.SerializableKeys(); len(keys) > 0 {
		return keys
	}
	return e.FieldNames()
}

func serializeMany(ctx context.Context, e model.Entity, key string) (types.Value, error) {
	items, loaded := e.ToMany(key)
	if !loaded {
		database.GetLogger().Debug("Relation not fetched, fetching", "field", key)
		if err := e.FetchRelated(ctx, key); err != nil {
			return types.Value{}, err
		}
		if items, loaded = e.ToMany(key); !loaded {
			return types.Value{}, fmt.Errorf("%s: %w", key, model.ErrNotFetched)
		}
	}

	values := make([]types.Value, 0, len(items))
	for _, item := range items {
		m, err := ToDict(ctx, item, WithRelated(false))
		if err != nil {
			return types.Value{}, err
		}
		if m.Len() > 0 {
			values = append(values, types.MappingValue(m))
		}
	}
	return types.SequenceValue(values), nil
}

func serializeOne(ctx context.Context, e model.Entity, key string) (types.Value, error) {
	target, loaded := e.ToOne(key)
	if !loaded {
		if err := e.FetchRelated(ctx, key); err != nil {
			return types.Value{}, err
		}
		if target, loaded = e.ToOne(key); !loaded {
			return types.Value{}, fmt.Errorf("%s: %w", key, model.ErrNotFetched)
		}
	}
	if target == nil {
		return types.NullValue(), nil
	}
	m, err := ToDict(ctx, target, WithRelated(false))
	if err != nil {
		return types.Value{}, err
	}
	return types.MappingValue(m), nil
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
