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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
default:
  type: sqlite
  dbname: ":memory:"
  slow_query_time: 500ms
  enable_query_log: true
  query_log_style: color
connections:
  reports:
    type: postgres
    driver: pgx
    host: db.internal
    port: 5432
    dbname: reports
logging:
  level: debug
  format: json
`

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	d := cfg.ConnectionConfig
	assert.Equal(t, "sqlite", d.Type)
	assert.Equal(t, ":memory:", d.DBName)
	assert.Equal(t, 500*time.Millisecond, d.SlowQueryTime)
	assert.Equal(t, QueryLogStyleColor, d.QueryLogStyle)
	assert.Equal(t, 100, d.MaxOpenConns)
	assert.Equal(t, time.Hour, d.ConnMaxLifetime)

	require.Contains(t, cfg.Connections, "reports")
	r := cfg.Connections["reports"]
	assert.Equal(t, "pgx", r.Driver)
	assert.Equal(t, "db.internal", r.Host)
	assert.Equal(t, 10, r.MaxIdleConns)
	assert.Equal(t, QueryLogStyleDebug, r.QueryLogStyle)

	assert.Equal(t, LoggingConfig{Level: "debug", Format: "json"}, cfg.Logging)
}

func TestParseConfig_IntegerSeconds(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
default:
  type: sqlite
  health_check_interval: 0
  conn_max_lifetime: 90
  slow_query_time: 250ms
connections:
  archive:
    type: sqlite
    reconnect_interval: 3
`))
	require.NoError(t, err)

	d := cfg.ConnectionConfig
	assert.Equal(t, time.Duration(0), d.HealthCheckInterval)
	assert.Equal(t, 90*time.Second, d.ConnMaxLifetime)
	assert.Equal(t, 250*time.Millisecond, d.SlowQueryTime)
	assert.Equal(t, 3*time.Second, cfg.Connections["archive"].ReconnectInterval)
}

func TestParseConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_ENABLE_QUERY_LOG", "false")
	t.Setenv("DB_REPORTS_HOST", "replica.internal")
	t.Setenv("DB_REPORTS_CONN_MAX_LIFETIME", "90")
	t.Setenv("DB_REPORTS_PORT", "not-a-number")

	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.ConnectionConfig.MaxOpenConns)
	assert.False(t, cfg.ConnectionConfig.EnableQueryLog)
	r := cfg.Connections["reports"]
	assert.Equal(t, "replica.internal", r.Host)
	assert.Equal(t, 90*time.Second, r.ConnMaxLifetime)
	assert.Equal(t, 5432, r.Port)
}

func TestParseConfig_ReservedName(t *testing.T) {
	_, err := ParseConfig([]byte("connections:\n  default:\n    type: sqlite\n"))
	assert.Error(t, err)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("default: [1, 2"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.ConnectionConfig.Type)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "DB_", envPrefix(DefaultConnection))
	assert.Equal(t, "DB_", envPrefix(""))
	assert.Equal(t, "DB_REPORTS_", envPrefix("reports"))
}
