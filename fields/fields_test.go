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
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/ormkit/errs"
)

type owner bool

func (o owner) Persisted() bool { return bool(o) }

func TestArrayField_ToStorage(t *testing.T) {
	f := NewArrayField()

	v, err := f.ToStorage([]string{"a"}, owner(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	v, err = f.ToStorage(map[string]struct{}{"a": {}}, owner(true))
	require.NoError(t, err)
	assert.Len(t, v, 1)

	v, err = f.ToStorage(nil, owner(true))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = f.ToStorage(12, owner(true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidValue))
	assert.Contains(t, err.Error(), "non-iterable value provided")

	_, err = f.ToStorage("abc", nil)
	assert.True(t, errors.Is(err, errs.InvalidValue))
}

func TestArrayField_UnsavedOwnerPassesThrough(t *testing.T) {
	v, err := NewIntArrayField().ToStorage(12, owner(false))
	require.NoError(t, err)
	assert.Equal(t, 12, v)
}

func TestArrayField_FromStorage(t *testing.T) {
	v, err := NewTextArrayField().FromStorage(`["x","y"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)

	v, err = NewIntArrayField().FromStorage([]byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, v)

	v, err = NewArrayField().FromStorage(`[1,"a"]`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(1), "a"}, v)

	already := []interface{}{"kept"}
	v, err = NewArrayField().FromStorage(already)
	require.NoError(t, err)
	assert.Equal(t, already, v)

	v, err = NewArrayField().FromStorage(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = NewIntArrayField().FromStorage(`{not json`)
	assert.True(t, errors.Is(err, errs.JSONDecode))

	_, err = NewIntArrayField().FromStorage(3.5)
	assert.True(t, errors.Is(err, errs.InvalidValue))
}

func TestArrayField_RoundTrip(t *testing.T) {
	for _, v := range []interface{}{
		[]string{"a", "b"},
		[]int64{4, 5},
		[]interface{}{"mixed", 1},
	} {
		stored, err := NewArrayField().ToStorage(v, owner(true))
		require.NoError(t, err)
		loaded, err := NewArrayField().FromStorage(stored)
		require.NoError(t, err)
		assert.Equal(t, v, loaded)
	}
}

func TestArrayColumns_ValueScan(t *testing.T) {
	in := TextArray{"a", "b"}
	raw, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, raw)

	var out TextArray
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	ints := IntArray{1, 2}
	raw, err = ints.Value()
	require.NoError(t, err)
	var outInts IntArray
	require.NoError(t, outInts.Scan([]byte(raw.(string))))
	assert.Equal(t, ints, outInts)

	var nilArr Array
	raw, err = nilArr.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)

	var scanned Array
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestCustomTextField(t *testing.T) {
	_, err := NewCustomTextField(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.Configuration))
	assert.Contains(t, err.Error(), "'max_length' must be >= 1")

	_, err = NewCITextField(-3)
	assert.True(t, errors.Is(err, errs.Configuration))

	assert.Panics(t, func() { MustCustomTextField(0) })

	f := MustCustomTextField(5)
	assert.Equal(t, KindText, f.Kind())
	assert.NoError(t, f.Validate("name", "Asha"))
	assert.NoError(t, f.Validate("name", "héllo"))
	err = f.Validate("name", "Ashaaa")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidValue))
	assert.Contains(t, err.Error(), "Length of 'name' 6 > 5")

	assert.Equal(t, "text(5)", f.SQLType("pg"))
	assert.Equal(t, "text(5)", f.SQLType("sqlite"))

	ci, err := NewCITextField(10)
	require.NoError(t, err)
	assert.True(t, ci.CaseInsensitive())
	assert.Equal(t, "citext", ci.SQLType("pg"))
	assert.Equal(t, "text(10)", ci.SQLType("mysql"))
}

func TestTextField_ExtraValidator(t *testing.T) {
	f := MustCustomTextField(20).AddValidator(func(field string, value interface{}) error {
		if value == "forbidden" {
			return errs.New(errs.InvalidValue, field+" is forbidden")
		}
		return nil
	})
	assert.Error(t, f.Validate("status", "forbidden"))
	assert.NoError(t, f.Validate("status", "ok"))
}

func TestToNaive(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	aware := time.Date(2024, 6, 1, 10, 0, 0, 0, ist)

	naive := ToNaive(aware)
	assert.Equal(t, time.UTC, naive.Location())
	assert.Equal(t, time.Date(2024, 6, 1, 4, 30, 0, 0, time.UTC), naive)

	already := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, already, ToNaive(already))
}

func TestNaiveDatetimeField(t *testing.T) {
	f := NewNaiveDatetimeField()
	ny := time.FixedZone("EST", -5*3600)
	aware := time.Date(2024, 1, 1, 23, 0, 0, 0, ny)

	v, err := f.ToStorage(aware, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), v)

	v, err = f.FromStorage("2024-01-01T23:00:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), v)

	v, err = f.FromStorage("2024-01-01 08:15:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 15, 0, 0, time.UTC), v)

	v, err = f.FromStorage(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = f.FromStorage("yesterday")
	assert.True(t, errors.Is(err, errs.InvalidValue))
	assert.Equal(t, "TIMESTAMP", f.SQLType("pg"))
}

func TestNaiveTime_ValueScan(t *testing.T) {
	aware := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	nt := NewNaiveTime(aware)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), nt.Time)

	raw, err := nt.Value()
	require.NoError(t, err)
	assert.Equal(t, nt.Time, raw)

	var scanned NaiveTime
	require.NoError(t, scanned.Scan(aware))
	assert.Equal(t, nt.Time, scanned.Time)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	raw, err = NaiveTime{}.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestForType(t *testing.T) {
	assert.Equal(t, KindArray, ForType(reflect.TypeOf(TextArray{})).Kind())
	assert.Equal(t, KindArray, ForType(reflect.TypeOf(&IntArray{})).Kind())
	assert.Equal(t, KindArray, ForType(reflect.TypeOf(Array{})).Kind())
	assert.Equal(t, KindDatetime, ForType(reflect.TypeOf(NaiveTime{})).Kind())
	assert.Nil(t, ForType(reflect.TypeOf("")))
	assert.Equal(t, "datetime", KindDatetime.String())
}
