// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package deeplink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attrail/attrail-go/pkg/logging"
	"github.com/attrail/attrail-go/pkg/prefs"
)

func quiet() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func memStore(t *testing.T) *prefs.Store {
	t.Helper()
	cfg := prefs.InMemoryConfig()
	cfg.Logger = quiet()
	store, err := prefs.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := NewController(Config{Store: memStore(t), Logger: quiet()})

	url, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, c.Save("https://app.example.com/offer/42"))
	url, err = c.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/offer/42", url)
}

func TestSaveEmptyIsNoOp(t *testing.T) {
	c := NewController(Config{Store: memStore(t), Logger: quiet()})
	require.NoError(t, c.Save("https://app.example.com/a"))
	require.NoError(t, c.Save(""))

	url, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/a", url)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	c := NewController(Config{Store: memStore(t), Logger: quiet()})
	require.NoError(t, c.Save("https://app.example.com/first"))
	require.NoError(t, c.Save("https://app.example.com/second"))

	url, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/second", url)
}

func TestClear(t *testing.T) {
	c := NewController(Config{Store: memStore(t), Logger: quiet()})
	require.NoError(t, c.Save("https://app.example.com/a"))
	require.NoError(t, c.Clear())

	url, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, url)

	// Clearing again is fine.
	require.NoError(t, c.Clear())
}

func TestTriggerWithoutStoredLink(t *testing.T) {
	opened := 0
	c := NewController(Config{
		Store: memStore(t),
		Opener: OpenerFunc(func(context.Context, string) (bool, error) {
			opened++
			return true, nil
		}),
		Logger: quiet(),
	})

	err := c.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrNoDeeplink)
	assert.Zero(t, opened)
}

func TestTriggerOpensAndNotifies(t *testing.T) {
	var openedURL, notifiedURL string
	c := NewController(Config{
		Store: memStore(t),
		Opener: OpenerFunc(func(_ context.Context, url string) (bool, error) {
			openedURL = url
			return true, nil
		}),
		Notify: func(_ context.Context, url string) error {
			notifiedURL = url
			return nil
		},
		Logger: quiet(),
	})

	require.NoError(t, c.Save("https://app.example.com/offer/42"))
	require.NoError(t, c.Trigger(context.Background()))
	assert.Equal(t, "https://app.example.com/offer/42", openedURL)
	assert.Equal(t, "https://app.example.com/offer/42", notifiedURL)
}

func TestTriggerNotifiesEvenWhenHostDeclines(t *testing.T) {
	notified := 0
	c := NewController(Config{
		Store: memStore(t),
		Opener: OpenerFunc(func(context.Context, string) (bool, error) {
			return false, errors.New("no activity found")
		}),
		Notify: func(context.Context, string) error {
			notified++
			return nil
		},
		Logger: quiet(),
	})

	require.NoError(t, c.Save("https://app.example.com/a"))
	require.NoError(t, c.Trigger(context.Background()))
	assert.Equal(t, 1, notified)
}

func TestTriggerSurfacesNotifyFailureAndKeepsLink(t *testing.T) {
	c := NewController(Config{
		Store:  memStore(t),
		Opener: NopOpener,
		Notify: func(context.Context, string) error {
			return errors.New("network down")
		},
		Logger: quiet(),
	})

	require.NoError(t, c.Save("https://app.example.com/a"))
	err := c.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")

	// The link survives so the trigger can be retried.
	url, loadErr := c.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "https://app.example.com/a", url)
}

func TestTriggerIsRepeatable(t *testing.T) {
	notified := 0
	c := NewController(Config{
		Store:  memStore(t),
		Opener: NopOpener,
		Notify: func(context.Context, string) error {
			notified++
			return nil
		},
		Logger: quiet(),
	})

	require.NoError(t, c.Save("https://app.example.com/a"))
	require.NoError(t, c.Trigger(context.Background()))
	require.NoError(t, c.Trigger(context.Background()))
	assert.Equal(t, 2, notified)
}

func TestLinkSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := prefs.DefaultConfig(dir)
	cfg.Logger = quiet()

	store, err := prefs.Open(cfg)
	require.NoError(t, err)
	c := NewController(Config{Store: store, Logger: quiet()})
	require.NoError(t, c.Save("https://app.example.com/persist"))
	require.NoError(t, store.Close())

	store, err = prefs.Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	c = NewController(Config{Store: store, Logger: quiet()})
	url, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/persist", url)
}

func TestNilStoreErrors(t *testing.T) {
	c := NewController(Config{Logger: quiet()})
	assert.Error(t, c.Save("https://app.example.com/a"))
	_, err := c.Load()
	assert.Error(t, err)
	assert.Error(t, c.Clear())
}
