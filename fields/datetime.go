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
	"time"

	"github.com/tomoncle/ormkit/errs"
)

var storageLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ToNaive converts an aware time to UTC and drops the offset. A time already
// in UTC counts as naive and is returned unchanged.
func ToNaive(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return t.UTC()
}

// NaiveDatetimeField stores timestamps without timezone.
type NaiveDatetimeField struct {
	validators
}

var _ Descriptor = (*NaiveDatetimeField)(nil)

func NewNaiveDatetimeField() *NaiveDatetimeField { return &NaiveDatetimeField{} }

func (f *NaiveDatetimeField) Kind() Kind { return KindDatetime }

func (f *NaiveDatetimeField) ToStorage(value interface{}, _ Owner) (interface{}, error) {
	t, ok, err := asTime(value)
	if err != nil || !ok {
		return nil, err
	}
	return ToNaive(t), nil
}

func (f *NaiveDatetimeField) FromStorage(value interface{}) (interface{}, error) {
	t, ok, err := asTime(value)
	if err != nil || !ok {
		return nil, err
	}
	return ToNaive(t), nil
}

func (f *NaiveDatetimeField) SQLType(string) string { return "TIMESTAMP" }

func asTime(value interface{}) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case NaiveTime:
		return v.Time, true, nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	return time.Time{}, false, errs.Errorf(errs.InvalidValue, "cannot use %T as datetime", value)
}

func parseTime(s string) (time.Time, bool, error) {
	for _, layout := range storageLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, errs.Errorf(errs.InvalidValue, "cannot parse %q as datetime", s)
}

// NaiveTime is a timestamp column normalized to naive UTC on read and write.
type NaiveTime struct {
	time.Time
}

func NewNaiveTime(t time.Time) NaiveTime { return NaiveTime{Time: ToNaive(t)} }

func (t NaiveTime) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return ToNaive(t.Time), nil
}

func (t *NaiveTime) Scan(src interface{}) error {
	v, err := NewNaiveDatetimeField().FromStorage(src)
	if err != nil {
		return err
	}
	if v == nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = v.(time.Time)
	return nil
}
