// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package identity owns the SDK's install identity and API token.
//
// An install identity is a stable, generated-once UUID representing one
// app installation, independent of any user account. It is created
// lazily on first access, persisted, and never rotated by this
// subsystem. The API token is caller-supplied, persisted on write, and
// read-through loaded on first access after process start.
package identity

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/attrail/attrail-go/pkg/prefs"
)

// Preference-store keys owned by this package.
const (
	keyInstallID = "install_instance_id"
	keyToken     = "api_token"
)

// ErrStoreNotAttached is returned when identity operations run before
// a preference store has been attached.
var ErrStoreNotAttached = errors.New("identity: preference store not attached")

// Manager provides the install id and API token. The in-memory fields
// are read-through caches; the preference store stays authoritative.
//
// Safe for concurrent use.
type Manager struct {
	store *prefs.Store

	mu          sync.Mutex
	token       string
	tokenLoaded bool
}

// NewManager creates a Manager over the given store. A nil store is
// accepted; operations then fail with ErrStoreNotAttached.
func NewManager(store *prefs.Store) *Manager {
	return &Manager{store: store}
}

// Token returns the cached API token, loading it from storage on the
// first call after process start. An empty token means the SDK has not
// been initialized.
func (m *Manager) Token() (string, error) {
	if m.store == nil {
		return "", ErrStoreNotAttached
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.tokenLoaded {
		stored, err := m.store.GetString(keyToken, "")
		if err != nil {
			return "", err
		}
		m.token = stored
		m.tokenLoaded = true
	}
	return m.token, nil
}

// SetToken caches the token and persists it. The memory write happens
// first so concurrent readers never observe the store ahead of the
// cache.
func (m *Manager) SetToken(token string) error {
	if m.store == nil {
		return ErrStoreNotAttached
	}

	m.mu.Lock()
	m.token = token
	m.tokenLoaded = true
	m.mu.Unlock()

	return m.store.SetString(keyToken, token)
}

// GetOrCreateInstallID returns the persisted install id, generating
// and persisting a new UUID on first use. Idempotent within and across
// process lifetimes: once created, every call returns the same value.
func (m *Manager) GetOrCreateInstallID() (string, error) {
	if m.store == nil {
		return "", ErrStoreNotAttached
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.GetString(keyInstallID, "")
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := m.store.SetString(keyInstallID, id); err != nil {
		return "", err
	}
	return id, nil
}
