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
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML config file. Every connection starts from
// DefaultConnectionConfig, and DB_* environment variables override the file:
// DB_HOST for the default connection, DB_<NAME>_HOST for a named one.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for YAML already in memory.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{ConnectionConfig: *DefaultConnectionConfig()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyEnv(&cfg.ConnectionConfig, envPrefix(DefaultConnection))
	for name, c := range cfg.Connections {
		if name == DefaultConnection {
			return nil, fmt.Errorf("connection name %q is reserved", name)
		}
		applyEnv(&c, envPrefix(name))
		cfg.Connections[name] = c
	}
	return cfg, nil
}

// durationKeys are the YAML keys of the time.Duration fields.
var durationKeys = func() map[string]bool {
	keys := map[string]bool{}
	typ := reflect.TypeOf(ConnectionConfig{})
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Type == reflect.TypeOf(time.Duration(0)) {
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			keys[name] = true
		}
	}
	return keys
}()

// UnmarshalYAML fills fields missing from the document with defaults.
// Durations are Go duration strings ("90s") or integer seconds, as in the
// environment.
func (c *ConnectionConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			if durationKeys[key.Value] && val.Kind == yaml.ScalarNode && val.ShortTag() == "!!int" {
				val.Tag = "!!str"
				val.Value += "s"
			}
		}
	}
	type plain ConnectionConfig
	p := plain(*DefaultConnectionConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = ConnectionConfig(p)
	return nil
}

func envPrefix(name string) string {
	if name == DefaultConnection || name == "" {
		return "DB_"
	}
	return "DB_" + strings.ToUpper(name) + "_"
}

// applyEnv overrides configuration values from environment variables.
func applyEnv(cfg *ConnectionConfig, prefix string) {
	env := func(key string) (string, bool) {
		v, ok := os.LookupEnv(prefix + key)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := env(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(n) * time.Second
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := env(key); ok {
			*dst = v == "true"
		}
	}

	str("TYPE", &cfg.Type)
	str("DRIVER", &cfg.Driver)
	str("HOST", &cfg.Host)
	num("PORT", &cfg.Port)
	str("USERNAME", &cfg.Username)
	str("PASSWORD", &cfg.Password)
	str("NAME", &cfg.DBName)
	str("SSLMODE", &cfg.SSLMode)
	num("MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	num("MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	seconds("CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)
	flag("ENABLE_RECONNECT", &cfg.EnableReconnect)
	seconds("RECONNECT_INTERVAL", &cfg.ReconnectInterval)
	flag("ENABLE_QUERY_LOG", &cfg.EnableQueryLog)
	str("QUERY_LOG_STYLE", &cfg.QueryLogStyle)
}
