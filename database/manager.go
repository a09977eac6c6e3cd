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
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// healthCheckTimeout bounds a single health check ping.
const healthCheckTimeout = 5 * time.Second

type defaultDatabaseManager struct {
	// name is the registry name kept up to date across reconnects; empty for
	// an unregistered manager.
	name      string
	config    *ConnectionConfig
	db        *bun.DB
	sqlDB     *sql.DB
	logger    Logger
	mu        sync.RWMutex
	connected bool
	lastError error
	stopWatch context.CancelFunc
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun. A nil
// config means DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	return newManager("", config)
}

func newManager(name string, config *ConnectionConfig) *defaultDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{
		name:   name,
		config: config,
	}
}

// Connect opens the connection and, with a health check interval, starts
// watching it in the background.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}
	if err := dm.open(ctx); err != nil {
		return err
	}
	if dm.config.HealthCheckInterval > 0 && dm.stopWatch == nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		dm.stopWatch = cancel
		go dm.watch(watchCtx)
	}

	if dm.logger != nil {
		dm.logger.Info("Database connected successfully", "connection", dm.name, "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	}
	return nil
}

// open replaces the current handle with a new, pinged one. The caller holds
// dm.mu.
func (dm *defaultDatabaseManager) open(ctx context.Context) error {
	if dm.db != nil {
		_ = dm.db.Close()
		dm.db, dm.sqlDB, dm.connected = nil, nil, false
	}

	sqlDB, db, err := dm.createConnection()
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.sqlDB, dm.db = sqlDB, db
	dm.configureConnectionPool()

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		dm.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.connected = true
	dm.lastError = nil
	if dm.name != "" {
		RegisterConnection(dm.name, db)
	}
	return nil
}

func (dm *defaultDatabaseManager) createConnection() (*sql.DB, *bun.DB, error) {
	var sqlDB *sql.DB
	var db *bun.DB
	var err error

	if dm.config.ConnectTimeout.Seconds() <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	switch dm.config.Type {
	case "mysql":
		sqlDB, db, err = dm.createMySQLConnection()
	case "postgres", "postgresql":
		sqlDB, db, err = dm.createPostgreSQLConnection()
	case "sqlite", "sqlite3":
		sqlDB, db, err = dm.createSQLiteConnection()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}

	if err != nil {
		return nil, nil, err
	}

	dm.addQueryHooks(db)
	return sqlDB, db, nil
}

func (dm *defaultDatabaseManager) addQueryHooks(db *bun.DB) {
	if dm.config.EnableQueryLog {
		if dm.config.QueryLogStyle == QueryLogStyleColor {
			db.AddQueryHook(NewQueryHook(WithQueryHookEnv("BUNDEBUG")))
		} else {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(dm.config.SlowQueryTime, dm.getLogger()))
	}
}

func (dm *defaultDatabaseManager) getLogger() Logger {
	if dm.logger != nil {
		return dm.logger
	}
	return GetLogger()
}

func (dm *defaultDatabaseManager) createMySQLConnection() (*sql.DB, *bun.DB, error) {
	charset := dm.config.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc := mysql.NewConfig()
	mc.User = dm.config.Username
	mc.Passwd = dm.config.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", dm.config.Host, dm.config.Port)
	mc.DBName = dm.config.DBName
	mc.ParseTime = true
	mc.MultiStatements = true
	mc.Timeout = dm.config.ConnectTimeout
	mc.ReadTimeout = dm.config.ReadTimeout
	mc.WriteTimeout = dm.config.WriteTimeout
	mc.Params = map[string]string{"charset": charset}

	sqlDB, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

// postgresDriver maps the configured driver to its database/sql name.
func postgresDriver(name string) (string, error) {
	switch name {
	case "", "pq", "postgres":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported postgres driver: %s", name)
	}
}

func (dm *defaultDatabaseManager) createPostgreSQLConnection() (*sql.DB, *bun.DB, error) {
	driver, err := postgresDriver(dm.config.Driver)
	if err != nil {
		return nil, nil, err
	}
	sslMode := dm.config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(dm.config.Username),
		url.QueryEscape(dm.config.Password),
		dm.config.Host,
		dm.config.Port,
		dm.config.DBName,
		sslMode,
		int(dm.config.ConnectTimeout.Seconds()),
	)

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func isSQLite(typ string) bool { return typ == "sqlite" || typ == "sqlite3" }

// sqliteDSN keeps ":memory:" and "file:" names as given and otherwise opens
// "<dbname>.db".
func sqliteDSN(name string) string {
	if name == ":memory:" || strings.HasPrefix(name, "file:") {
		return name
	}
	return fmt.Sprintf("%s.db", name)
}

func (dm *defaultDatabaseManager) createSQLiteConnection() (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, sqliteDSN(dm.config.DBName))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (dm *defaultDatabaseManager) configureConnectionPool() {
	if dm.sqlDB == nil {
		return
	}

	dm.sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	dm.sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	// every connection to an in-memory sqlite database sees its own database
	if isSQLite(dm.config.Type) && sqliteDSN(dm.config.DBName) == ":memory:" {
		dm.sqlDB.SetMaxOpenConns(1)
	}
	dm.sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	dm.sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

// Disconnect stops the health watcher and closes the connection.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.stopWatch != nil {
		dm.stopWatch()
		dm.stopWatch = nil
	}
	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db, dm.sqlDB, dm.connected = nil, nil, false
	if dm.logger != nil {
		if err != nil {
			dm.logger.Error("Failed to close database connection", "connection", dm.name, "error", err)
		} else {
			dm.logger.Info("Database connection closed", "connection", dm.name)
		}
	}
	return err
}

// Reconnect reopens the connection. A running health watcher keeps running.
func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	if dm.logger != nil {
		dm.logger.Info("Attempting to reconnect to the database", "connection", dm.name)
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	// a watcher stopped by Disconnect must not reopen the connection
	if err := ctx.Err(); err != nil {
		return err
	}
	return dm.open(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	status := pingStatus(ctx, dm.db)
	if status.Healthy {
		dm.lastError = nil
	} else if dm.db != nil {
		dm.lastError = errors.New(status.LastError)
	}
	dm.connected = status.Connected
	return status
}

// watch checks the connection every HealthCheckInterval until ctx is done,
// reconnecting an unhealthy one when reconnects are enabled.
func (dm *defaultDatabaseManager) watch(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := dm.HealthCheck(ctx); !status.Healthy && dm.config.EnableReconnect {
				_ = dm.reconnectWithRetry(ctx)
			}
		}
	}
}

// reconnectWithRetry makes up to MaxReconnectTries attempts, waiting
// ReconnectInterval before each one.
func (dm *defaultDatabaseManager) reconnectWithRetry(ctx context.Context) error {
	tries := dm.config.MaxReconnectTries
	if tries < 1 {
		tries = 1
	}
	var err error
	for try := 1; try <= tries; try++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dm.config.ReconnectInterval):
		}
		if err = dm.Reconnect(ctx); err == nil {
			if dm.logger != nil {
				dm.logger.Info("Reconnect succeeded", "connection", dm.name, "try", try)
			}
			return nil
		}
		if dm.logger != nil {
			dm.logger.Error("Reconnect failed", "connection", dm.name, "error", err, "try", try)
		}
	}
	if dm.logger != nil {
		dm.logger.Error("Max reconnect attempts reached", "connection", dm.name, "tries", tries)
	}
	return err
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return statsOf(dm.sqlDB)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

// pingStatus pings db and reports its pool usage.
func pingStatus(ctx context.Context, db *bun.DB) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := db.DB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

func statsOf(sqlDB *sql.DB) *DBStats {
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}
