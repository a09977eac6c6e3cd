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

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"no rows", fmt.Errorf("get: %w", sql.ErrNoRows), true, NoRowsErr},
		{"pq unique", &pq.Error{Code: "23505"}, true, DuplicateKeyErr},
		{"pq not null", &pq.Error{Code: "23502"}, true, NotNullViolationErr},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, true, ForeignKeyViolationErr},
		{"pgx undefined table", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "42P01"}), true, NoTableErr},
		{"pgx unmapped", &pgconn.PgError{Code: "40001"}, true, UnknownErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true, DuplicateKeyErr},
		{"mysql no column", &mysql.MySQLError{Number: 1054}, true, NoColumnErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: patients.email (2067)"), true, DuplicateKeyErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: patients (1)"), true, NoTableErr},
		{"other", errors.New("connection reset by peer"), false, UnknownErr},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is, kind := IsSqlError(c.err)
			assert.Equal(t, c.is, is)
			assert.Equal(t, c.kind, kind)
		})
	}
}
