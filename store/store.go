// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store is a persistent key/value store for unsigned 32 bit
// settings, held in a sqlite database.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"math"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("key not found")

//go:embed schema.sql
var schemaSQL string

// DB is a settings store.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the settings database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %q: %w", path, pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: schema: %w", path, err)
	}
	log.Printf("settings database %s opened", path)
	return &DB{DB: db, path: path}, nil
}

// GetU32 returns the value stored for key, or ErrNotFound.
func (db *DB) GetU32(key string) (uint32, error) {
	var v int64
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%s: stored value %d out of range", key, v)
	}
	return uint32(v), nil
}

// SetU32 stores value for key, replacing any previous value.
func (db *DB) SetU32(key string, value uint32) error {
	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_unix = unixepoch()`,
		key, int64(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key string) error {
	if _, err := db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (db *DB) Keys() ([]string, error) {
	rows, err := db.Query(`SELECT key FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the database file name.
func (db *DB) Path() string {
	return db.path
}
