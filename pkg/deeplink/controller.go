// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package deeplink stores and replays the deferred deep link assigned
// to an install. The link arrives from the attribution service before
// the app is ready to navigate, so it is parked in storage and
// triggered later, surviving restarts in between.
package deeplink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/attrail/attrail-go/pkg/logging"
	"github.com/attrail/attrail-go/pkg/prefs"
)

const keyDeeplinkURL = "deeplink_url"

// ErrNoDeeplink is returned by Trigger when no deferred deep link is
// stored for this install.
var ErrNoDeeplink = errors.New("no deferred deeplink stored")

// Opener hands a deep link to the host application for navigation.
// The boolean result reports whether the host claims to have handled
// the link; triggering proceeds to notify regardless, since the link
// was surfaced either way.
type Opener interface {
	Open(ctx context.Context, url string) (bool, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, url string) (bool, error)

func (f OpenerFunc) Open(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// NopOpener accepts every link without navigating anywhere. Used when
// the host application has no navigation hook to offer.
var NopOpener = OpenerFunc(func(context.Context, string) (bool, error) {
	return false, nil
})

// Notifier reports a successful trigger upstream. The facade wires
// this to the deeplink-triggered endpoint.
type Notifier func(ctx context.Context, url string) error

// Controller owns the deferred-deep-link lifecycle: Save parks a link,
// Trigger replays it through the host and confirms upstream.
type Controller struct {
	store  *prefs.Store
	opener Opener
	notify Notifier
	log    *logging.Logger

	mu sync.Mutex
}

// Config controls a Controller.
type Config struct {
	Store *prefs.Store
	// Opener defaults to NopOpener.
	Opener Opener
	// Notify may be nil, in which case triggering stops at the host.
	Notify Notifier
	Logger *logging.Logger
}

// NewController builds a Controller.
func NewController(cfg Config) *Controller {
	opener := cfg.Opener
	if opener == nil {
		opener = NopOpener
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Controller{
		store:  cfg.Store,
		opener: opener,
		notify: cfg.Notify,
		log:    log,
	}
}

// Save parks url as the pending deferred deep link. An empty url is a
// no-op so callers can pass attribution responses through unchecked.
func (c *Controller) Save(url string) error {
	if url == "" {
		return nil
	}
	if c.store == nil {
		return errors.New("deeplink store not attached")
	}
	if err := c.store.SetString(keyDeeplinkURL, url); err != nil {
		return fmt.Errorf("failed to store deeplink: %w", err)
	}
	c.log.Debug("deferred deeplink stored", "url", url)
	return nil
}

// Load returns the pending deferred deep link, or "" when none is
// stored.
func (c *Controller) Load() (string, error) {
	if c.store == nil {
		return "", errors.New("deeplink store not attached")
	}
	return c.store.GetString(keyDeeplinkURL, "")
}

// Clear removes the pending deferred deep link. Clearing when nothing
// is stored is a no-op.
func (c *Controller) Clear() error {
	if c.store == nil {
		return errors.New("deeplink store not attached")
	}
	return c.store.Remove(keyDeeplinkURL)
}

// Trigger replays the stored link through the host opener and, when a
// notifier is wired, confirms the trigger upstream. The stored link is
// left in place, so a failed notification can be retried by calling
// Trigger again. Returns ErrNoDeeplink when nothing is stored.
func (c *Controller) Trigger(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, err := c.Load()
	if err != nil {
		return err
	}
	if url == "" {
		return ErrNoDeeplink
	}

	handled, err := c.opener.Open(ctx, url)
	if err != nil {
		// The host failing to navigate does not abort the trigger:
		// the attribution contract only requires that the link was
		// surfaced to the host.
		c.log.Warn("deeplink opener failed", "url", url, "error", err)
	} else if !handled {
		c.log.Debug("deeplink not claimed by host", "url", url)
	}

	if c.notify == nil {
		return nil
	}
	if err := c.notify(ctx, url); err != nil {
		return fmt.Errorf("failed to confirm deeplink trigger: %w", err)
	}
	c.log.Info("deferred deeplink triggered", "url", url)
	return nil
}
