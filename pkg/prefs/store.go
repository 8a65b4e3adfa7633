// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prefs provides the SDK's durable preference store.
//
// The store is a flat mapping from namespaced string keys to primitive
// values (string/bool), backed by an embedded BadgerDB instance. It is
// the single source of truth for all state that must survive process
// restarts: the install id, the API token, the stored deferred
// deep-link URL, and the PII-hashing flag. In-memory fields elsewhere
// in the SDK are read-through caches over this store, never
// authoritative.
//
// Missing keys are a normal, default-valued state, not corruption:
// every getter takes the default to return. There is no schema
// versioning and no cross-key atomicity; callers must not assume a
// multi-key update is observed atomically by another process.
//
// # Thread Safety
//
// Store is safe for concurrent use; BadgerDB provides per-operation
// consistency.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/attrail/attrail-go/pkg/logging"
)

// keyPrefix namespaces every key so the store can share a Badger
// directory with host-application data without collisions.
const keyPrefix = "attrail/"

// Config holds configuration for the preference store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing and for hosts that opt out of durability.
	InMemory bool

	// SyncWrites makes every Set durable before it returns.
	// Default: true for persistent stores.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB logging is disabled.
	Logger *logging.Logger
}

// DefaultConfig returns production defaults: synchronous writes,
// persistent storage at Path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, no
// sync overhead, data lost on Close.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the durable key-value preference store.
type Store struct {
	db       *badger.DB
	inMemory bool
}

// Open creates and opens a preference store with the given
// configuration. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.Slog()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}

	return &Store{db: db, inMemory: cfg.InMemory}, nil
}

// OpenInMemory is a convenience constructor for tests.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close releases the underlying database. Pending writes are flushed
// first for persistent stores.
func (s *Store) Close() error {
	return s.db.Close()
}

// InMemory reports whether the store has no disk persistence.
func (s *Store) InMemory() bool {
	return s.inMemory
}

// GetString returns the stored value for key, or def when the key is
// absent. The error is non-nil only for storage-layer failures.
func (s *Store) GetString(key, def string) (string, error) {
	var value string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return def, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// SetString durably stores value under key, superseding any previous
// value.
func (s *Store) SetString(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// GetBool returns the stored flag for key, or def when the key is
// absent or unparseable.
func (s *Store) GetBool(key string, def bool) (bool, error) {
	raw, err := s.GetString(key, "")
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}
	return parsed, nil
}

// SetBool durably stores a flag under key.
func (s *Store) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key in the SDK namespace. Keys outside the
// namespace are untouched.
func (s *Store) Clear() error {
	prefix := []byte(keyPrefix)
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}
