package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBackend is a MySQL/MariaDB-backed Backend.
//
// Designed for:
//   - Shared or production deployments where multiple processes need to
//     read a run's dumps and manifest (e.g. an inspection dashboard reading
//     a run that a separate worker is still writing)
//
// The DSN format matches the driver's standard:
//
//	user:password@tcp(127.0.0.1:3306)/dbname?parseTime=true
type MySQLBackend struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLBackend opens a connection pool against dsn and ensures its blob
// table exists.
func NewMySQLBackend(dsn string) (*MySQLBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: ping mysql: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS dumps (
			dump_key VARCHAR(512) NOT NULL PRIMARY KEY,
			data LONGBLOB NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: create schema: %w", err)
	}

	return &MySQLBackend{db: db}, nil
}

func (m *MySQLBackend) Put(ctx context.Context, key string, data []byte) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return fmt.Errorf("persist: backend closed")
	}
	const q = `
		INSERT INTO dumps (dump_key, data) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data)
	`
	_, err := m.db.ExecContext(ctx, q, key, data)
	return err
}

func (m *MySQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("persist: backend closed")
	}
	var data []byte
	err := m.db.QueryRowContext(ctx, `SELECT data FROM dumps WHERE dump_key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *MySQLBackend) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT dump_key FROM dumps WHERE dump_key LIKE ?`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, rows.Err()
}

func (m *MySQLBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
