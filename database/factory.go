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
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	named   map[string]AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		named:  map[string]AbstractDatabaseManager{},
		logger: GetLogger(),
	}
}

// CreateFromConfig constructs a manager for the default connection, applying
// DB_* environment overrides and setting the factory logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	return f.CreateNamed(DefaultConnection, cfg)
}

// CreateNamed is CreateFromConfig for a named connection, whose overrides
// are read from DB_<NAME>_* variables.
func (f *BaseDatabaseFactory) CreateNamed(name string, cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	applyEnv(cfg, envPrefix(name))

	// Check whether the database type is supported
	supportedTypes := []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}
	supported := false
	for _, t := range supportedTypes {
		if cfg.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	if name == "" {
		name = DefaultConnection
	}
	manager := newManager(name, cfg)
	manager.SetLogger(f.logger)

	if name == DefaultConnection {
		f.manager = manager
	} else {
		f.named[name] = manager
	}
	return manager, nil
}

// InitializeDatabase connects the default manager and every named one. Each
// manager registers its handle under its name for GetConnection on connect
// and on every reconnect.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	// Connect to database
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, name := range f.NamedConnections() {
		if err := f.named[name].Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database %q: %w", name, err)
		}
	}
	f.logger.Info("Database initialization completed!", "connections", len(f.named)+1)
	return nil
}

// NamedConnections lists the names given to CreateNamed, sorted.
func (f *BaseDatabaseFactory) NamedConnections() []string {
	names := make([]string, 0, len(f.named))
	for name := range f.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetNamedManager returns the manager created for name, or the default one.
func (f *BaseDatabaseFactory) GetNamedManager(name string) AbstractDatabaseManager {
	if name == "" || name == DefaultConnection {
		return f.manager
	}
	return f.named[name]
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
	for _, m := range f.named {
		m.SetLogger(logger)
	}
}

// Close disconnects every manager and unregisters its connection. The first
// error is returned after all of them were closed.
func (f *BaseDatabaseFactory) Close() error {
	var first error
	for _, name := range f.NamedConnections() {
		UnregisterConnection(name)
		if err := f.named[name].Disconnect(); err != nil && first == nil {
			first = err
		}
	}
	if f.manager != nil {
		UnregisterConnection(DefaultConnection)
		if err := f.manager.Disconnect(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
