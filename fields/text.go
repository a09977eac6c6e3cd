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
	"fmt"

	"github.com/tomoncle/ormkit/errs"
)

// DefaultTextLength is the maximum length used when none is configured.
const DefaultTextLength = 100

// TextField is a text column with an enforced maximum length.
type TextField struct {
	maxLength       int
	caseInsensitive bool
	validators
}

var _ Descriptor = (*TextField)(nil)

// NewCustomTextField returns a bounded text field. A maxLength below 1 is a
// schema definition error.
func NewCustomTextField(maxLength int) (*TextField, error) {
	if maxLength < 1 {
		return nil, errs.New(errs.Configuration, "'max_length' must be >= 1")
	}
	f := &TextField{maxLength: maxLength}
	f.validators = append(f.validators, MaxLength(maxLength))
	return f, nil
}

// NewCITextField returns a bounded text field compared case-insensitively.
func NewCITextField(maxLength int) (*TextField, error) {
	f, err := NewCustomTextField(maxLength)
	if err != nil {
		return nil, err
	}
	f.caseInsensitive = true
	return f, nil
}

// MustCustomTextField is like NewCustomTextField but panics on error. It is
// meant for package-level schema declarations.
func MustCustomTextField(maxLength int) *TextField {
	f, err := NewCustomTextField(maxLength)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *TextField) Kind() Kind { return KindText }

func (f *TextField) MaxLength() int { return f.maxLength }

func (f *TextField) CaseInsensitive() bool { return f.caseInsensitive }

func (f *TextField) AddValidator(v Validator) *TextField {
	f.validators = append(f.validators, v)
	return f
}

func (f *TextField) ToStorage(value interface{}, _ Owner) (interface{}, error) {
	return value, nil
}

func (f *TextField) FromStorage(value interface{}) (interface{}, error) {
	if b, ok := value.([]byte); ok {
		return string(b), nil
	}
	return value, nil
}

func (f *TextField) SQLType(dialect string) string {
	if dialect == "pg" && f.caseInsensitive {
		return "citext"
	}
	return fmt.Sprintf("text(%d)", f.maxLength)
}
