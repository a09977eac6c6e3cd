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
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// DefaultConnection is the name used when a caller passes no connection name.
const DefaultConnection = "default"

var (
	connections   = map[string]*bun.DB{}
	connectionsMu sync.RWMutex
)

// RegisterConnection makes db reachable through GetConnection(name).
func RegisterConnection(name string, db *bun.DB) {
	if name == "" {
		name = DefaultConnection
	}
	connectionsMu.Lock()
	defer connectionsMu.Unlock()
	connections[name] = db
}

func UnregisterConnection(name string) {
	if name == "" {
		name = DefaultConnection
	}
	connectionsMu.Lock()
	defer connectionsMu.Unlock()
	delete(connections, name)
}

// GetConnection returns the connection registered under name. The default
// connection falls back to the database opened by InitDB.
func GetConnection(name string) (*bun.DB, error) {
	if name == "" {
		name = DefaultConnection
	}
	connectionsMu.RLock()
	db, ok := connections[name]
	connectionsMu.RUnlock()
	if ok {
		return db, nil
	}
	if name == DefaultConnection {
		if db := GetDB(); db != nil {
			return db, nil
		}
	}
	return nil, fmt.Errorf("connection %q is not registered", name)
}

// ConnectionNames lists the registered connection names in sorted order.
func ConnectionNames() []string {
	connectionsMu.RLock()
	defer connectionsMu.RUnlock()
	names := make([]string, 0, len(connections))
	for name := range connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registered() map[string]*bun.DB {
	connectionsMu.RLock()
	defer connectionsMu.RUnlock()
	out := make(map[string]*bun.DB, len(connections))
	for name, db := range connections {
		out[name] = db
	}
	return out
}

// ConnectionHealth pings every registered connection.
func ConnectionHealth(ctx context.Context) map[string]*HealthStatus {
	dbs := registered()
	out := make(map[string]*HealthStatus, len(dbs))
	for name, db := range dbs {
		out[name] = pingStatus(ctx, db)
	}
	return out
}

// ConnectionStats returns the pool statistics of every registered connection.
func ConnectionStats() map[string]*DBStats {
	dbs := registered()
	out := make(map[string]*DBStats, len(dbs))
	for name, db := range dbs {
		out[name] = statsOf(db.DB)
	}
	return out
}
