// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCaptureReceivesRecords verifies records flow into the capture
// with message, level and attributes intact.
func TestCaptureReceivesRecords(t *testing.T) {
	cap := NewCapture()
	logger := New(Config{Level: LevelDebug, Quiet: true, Capture: cap})

	logger.Info("event dispatched", "event", "SIGNUP", "attempt", 1)
	logger.Error("dispatch failed", "status", 500)

	records := cap.Records()
	require.Len(t, records, 2)

	assert.Equal(t, LevelInfo, records[0].Level)
	assert.Equal(t, "event dispatched", records[0].Message)
	assert.Equal(t, "SIGNUP", records[0].Attrs["event"])

	assert.Equal(t, LevelError, records[1].Level)
	assert.Equal(t, int64(500), records[1].Attrs["status"])
}

// TestLevelFilter verifies messages below the configured level are
// discarded.
func TestLevelFilter(t *testing.T) {
	cap := NewCapture()
	logger := New(Config{Level: LevelWarn, Quiet: true, Capture: cap})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	records := cap.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "warn", records[0].Message)
	assert.Equal(t, "error", records[1].Message)
}

// TestWithCarriesAttributes verifies child loggers include parent
// attributes on every record.
func TestWithCarriesAttributes(t *testing.T) {
	cap := NewCapture()
	logger := New(Config{Quiet: true, Capture: cap, Service: "attrail"})

	child := logger.With("install_id", "abc-123")
	child.Info("collecting fingerprint")

	records := cap.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "abc-123", records[0].Attrs["install_id"])
	assert.Equal(t, "attrail", records[0].Attrs["service"])
}

// TestLevelString spot-checks the Stringer.
func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

// TestQuietWithoutCapture exercises the discard path; it must not panic.
func TestQuietWithoutCapture(t *testing.T) {
	logger := New(Config{Quiet: true})
	logger.Info("goes nowhere")
}
