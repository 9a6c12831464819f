// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// EmbeddedBackend implements VectorBackend using a local SQLite database
// with the sqlite-vec extension for cosine k-NN and FTS5 for full text.
// This is the default backend for standalone/open-source use.
type EmbeddedBackend struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool

	tablesMu sync.Mutex
	tables   map[string]int // table name -> embedding dimension, for repeat CreateTableIfAbsent calls
}

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory holding the SQLite database file.
	// Defaults to ~/.yep-mem/data/<project_id>.
	DataDir string

	// ProjectID namespaces the data directory.
	ProjectID string
}

// NewEmbeddedBackend opens (creating if absent) the project's SQLite database.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".yep-mem", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(config.DataDir, "index.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &EmbeddedBackend{db: db, tables: make(map[string]int)}, nil
}

// Query executes a read-only statement.
func (b *EmbeddedBackend) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Headers: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, raw)
	}
	return result, rows.Err()
}

// Execute runs a write statement.
func (b *EmbeddedBackend) Execute(ctx context.Context, query string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}
	return nil
}

// Close closes the database connection. Safe to call more than once.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (b *EmbeddedBackend) DB() *sql.DB {
	return b.db
}

// CreateTableIfAbsent registers the metadata/vec0/FTS5 triple for table.
func (b *EmbeddedBackend) CreateTableIfAbsent(ctx context.Context, table string, dim int) error {
	b.tablesMu.Lock()
	defer b.tablesMu.Unlock()
	if _, ok := b.tables[table]; ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	for _, stmt := range splitStatements(tableSchemaSQL(table, dim)) {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	b.tables[table] = dim
	return nil
}

// UpsertByID replaces the record with the given id, or inserts it.
func (b *EmbeddedBackend) UpsertByID(ctx context.Context, table string, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, embedding_text, fields) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET embedding_text = excluded.embedding_text, fields = excluded.fields
		`, recordsTableName(table)), rec.ID, rec.EmbeddingText, string(fieldsJSON))
		if err != nil {
			return err
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if rowID == 0 {
			if err := tx.QueryRowContext(ctx,
				fmt.Sprintf("SELECT rowid FROM %s WHERE id = ?", recordsTableName(table)), rec.ID,
			).Scan(&rowID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE row_id = ?", vecTableName(table)), rowID,
		); err != nil {
			return err
		}
		if rec.Embedding != nil {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (row_id, embedding) VALUES (?, ?)", vecTableName(table)),
				rowID, serializeFloat32(rec.Embedding),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByPredicate removes every record for which fields[field] == value,
// or the id/embedding_text column itself when field names one of those.
func (b *EmbeddedBackend) DeleteByPredicate(ctx context.Context, table, field, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	where := "json_extract(fields, '$.' || ?) = ?"
	args := []any{field, value}
	if field == "id" || field == "embedding_text" {
		where = field + " = ?"
		args = []any{value}
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s", recordsTableName(table), where), args...)
		return err
	})
}

// KNN returns the k nearest records to query by cosine distance.
func (b *EmbeddedBackend) KNN(ctx context.Context, table string, query []float32, k int) ([]Scored, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.embedding_text, r.fields, v.distance
		FROM %s v
		JOIN %s r ON r.rowid = v.row_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, vecTableName(table), recordsTableName(table)), serializeFloat32(query), k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var rec Scored
		var fieldsJSON string
		var distance float64
		if err := rows.Scan(&rec.ID, &rec.EmbeddingText, &fieldsJSON, &distance); err != nil {
			return nil, err
		}
		rec.Fields = decodeFields(fieldsJSON)
		rec.Score = 1 - distance
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FTS returns up to k records whose embedding_text matches pattern.
func (b *EmbeddedBackend) FTS(ctx context.Context, table, pattern string, k int) ([]Scored, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.embedding_text, r.fields, f.rank
		FROM %s f
		JOIN %s r ON r.rowid = f.rowid
		WHERE %s MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, ftsTableName(table), recordsTableName(table), ftsTableName(table)), pattern, k)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var rec Scored
		var fieldsJSON string
		var rank float64
		if err := rows.Scan(&rec.ID, &rec.EmbeddingText, &fieldsJSON, &rank); err != nil {
			return nil, err
		}
		rec.Fields = decodeFields(fieldsJSON)
		rec.Score = -rank // FTS5 rank is negative; lower (more negative) is better
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Scan returns up to limit records with fields[field] == value.
func (b *EmbeddedBackend) Scan(ctx context.Context, table, field, value string, limit int) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	query := fmt.Sprintf("SELECT id, embedding_text, fields FROM %s", recordsTableName(table))
	var args []any
	if field != "" {
		query += " WHERE json_extract(fields, '$.' || ?) = ?"
		args = append(args, field, value)
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var fieldsJSON string
		if err := rows.Scan(&rec.ID, &rec.EmbeddingText, &fieldsJSON); err != nil {
			return nil, err
		}
		rec.Fields = decodeFields(fieldsJSON)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (b *EmbeddedBackend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func decodeFields(raw string) map[string]string {
	fields := make(map[string]string)
	if raw == "" {
		return fields
	}
	_ = json.Unmarshal([]byte(raw), &fields)
	return fields
}

// splitStatements splits a multi-statement DDL blob on semicolons at
// top level of nesting (none of our DDL nests a ';' inside a string), since
// database/sql's Exec runs only one statement at a time against sqlite3.
func splitStatements(sqlText string) []string {
	var out []string
	for _, stmt := range strings.Split(sqlText, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

var _ VectorBackend = (*EmbeddedBackend)(nil)
