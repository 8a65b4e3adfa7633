// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pii implements the SDK's PII-hashing policy.
//
// When the policy is enabled, exactly three user-data fields (name,
// email, phone) are replaced by their SHA-256 hex digests before any
// payload leaves the device. All other fields pass through unmodified
// regardless of policy. Toggling the policy never retroactively
// affects already-sent data.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/attrail/attrail-go/pkg/prefs"
)

// keyHashEnabled is the preference-store key for the policy flag.
const keyHashEnabled = "hash_pii_enabled"

// Hash returns the lowercase hex SHA-256 digest of input. Pure: no
// side effects, deterministic, fixed-length output.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Policy is the persisted on/off switch for PII hashing. The cached
// flag is refreshed from storage on every Enabled call so an external
// writer to the same store is picked up; the storage read failing falls
// back to the last cached value.
//
// Safe for concurrent use.
type Policy struct {
	store *prefs.Store

	mu      sync.Mutex
	enabled bool
}

// NewPolicy creates a Policy over the given store. The default is
// disabled until SetEnabled(true) is called.
func NewPolicy(store *prefs.Store) *Policy {
	return &Policy{store: store}
}

// Enabled reads the flag through to storage.
func (p *Policy) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		stored, err := p.store.GetBool(keyHashEnabled, false)
		if err == nil {
			p.enabled = stored
		}
	}
	return p.enabled
}

// SetEnabled updates the flag in memory, then in storage. The two
// writes are effectively atomic from a caller's perspective: Enabled
// re-reads storage, so no observer sees them diverge.
func (p *Policy) SetEnabled(enabled bool) error {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	return p.store.SetBool(keyHashEnabled, enabled)
}
