// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package referrer resolves install-referrer metadata from the
// platform's referrer service.
//
// The platform service speaks a callback-based connect/disconnect
// protocol. Resolver adapts it into a single bounded call:
//
//	details, ok := resolver.Resolve(ctx)
//
// The handshake is a one-shot state machine:
//
//	Idle → Connecting → { Resolved | Unavailable | Disconnected }
//
// All three terminal states other than Resolved mean "no referrer
// data", never an error. Connection teardown runs exactly once on
// every exit path, cancellation included.
package referrer

import (
	"context"
	"sync"
	"time"

	"github.com/attrail/attrail-go/pkg/logging"
)

// SetupStatus is the platform service's connect outcome.
type SetupStatus int

const (
	// SetupOK means the connection is established and the referrer
	// payload may be read.
	SetupOK SetupStatus = iota

	// SetupFeatureNotSupported means the installed store version does
	// not expose referrer data.
	SetupFeatureNotSupported

	// SetupServiceUnavailable means the service could not be reached.
	SetupServiceUnavailable

	// SetupServiceDisconnected means the service dropped during connect.
	SetupServiceDisconnected

	// SetupDeveloperError means the caller misused the API.
	SetupDeveloperError

	// SetupPermissionError means the platform rejected the caller.
	SetupPermissionError
)

// Details is the referrer payload for a single resolution attempt.
// Transient: produced once per collection cycle, never persisted.
type Details struct {
	// InstallReferrer is the raw referrer string.
	InstallReferrer string

	// ReferrerClickTimestampSeconds is the click time by the client clock.
	ReferrerClickTimestampSeconds int64

	// InstallBeginTimestampSeconds is the install-begin time by the
	// client clock.
	InstallBeginTimestampSeconds int64

	// ReferrerClickTimestampServerSeconds is the click time by the
	// store's server clock.
	ReferrerClickTimestampServerSeconds int64

	// InstallBeginTimestampServerSeconds is the install-begin time by
	// the store's server clock.
	InstallBeginTimestampServerSeconds int64

	// InstallVersion is the app version present at install time.
	InstallVersion string

	// GooglePlayInstant reports an instant-experience install.
	GooglePlayInstant bool
}

// StateListener receives the platform service's callbacks.
type StateListener interface {
	// OnSetupFinished is called once when connect completes.
	OnSetupFinished(status SetupStatus)

	// OnServiceDisconnected is called if the connection drops
	// asynchronously after setup.
	OnServiceDisconnected()
}

// Connection is one connection to the platform referrer service.
// Implementations are platform bindings; tests use fakes.
type Connection interface {
	// Start begins the handshake. Callbacks arrive on an arbitrary
	// goroutine.
	Start(listener StateListener)

	// Referrer reads the referrer payload. Valid only after
	// OnSetupFinished(SetupOK); may still fail.
	Referrer() (Details, error)

	// End releases the connection. Must tolerate being called after a
	// terminal callback.
	End()
}

// Dialer creates a fresh Connection per resolution attempt.
type Dialer func() (Connection, error)

// State names the resolver's phases, for logging.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateResolved
	StateUnavailable
	StateDisconnected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateResolved:
		return "resolved"
	case StateUnavailable:
		return "unavailable"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DefaultTimeout bounds a resolution attempt when the caller's context
// carries no earlier deadline.
const DefaultTimeout = 5 * time.Second

// Config configures a Resolver.
type Config struct {
	// Dial creates the platform connection. Nil means no referrer
	// service on this host; Resolve then reports absent immediately.
	Dial Dialer

	// Timeout bounds each resolution attempt. Default: DefaultTimeout.
	Timeout time.Duration

	// Logger for handshake outcomes. Default: logging.Default().
	Logger *logging.Logger
}

// Resolver performs single-shot referrer resolutions.
type Resolver struct {
	dial    Dialer
	timeout time.Duration
	logger  *logging.Logger
}

// NewResolver creates a Resolver from config.
func NewResolver(cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Resolver{dial: cfg.Dial, timeout: cfg.Timeout, logger: cfg.Logger}
}

// outcome is one terminal result delivered by the listener.
type outcome struct {
	state   State
	details Details
}

// Resolve runs one handshake and returns the referrer payload, or
// ok=false when no data is available for any reason (unsupported,
// unavailable, disconnected, read failure, cancellation). It never
// returns an error: absence of referrer data is a normal state.
func (r *Resolver) Resolve(ctx context.Context) (Details, bool) {
	if r.dial == nil {
		return Details{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.dial()
	if err != nil || conn == nil {
		r.logger.Debug("referrer service dial failed", "error", err)
		return Details{}, false
	}

	var once sync.Once
	end := func() { once.Do(conn.End) }
	// Teardown is guaranteed on every exit path; once prevents a
	// double-End when a terminal callback races cancellation.
	defer end()

	outcomes := make(chan outcome, 1)
	conn.Start(&listener{conn: conn, end: end, outcomes: outcomes})

	select {
	case o := <-outcomes:
		r.logger.Debug("referrer handshake finished", "state", o.state.String())
		return o.details, o.state == StateResolved
	case <-ctx.Done():
		r.logger.Debug("referrer handshake cancelled", "state", StateConnecting.String())
		return Details{}, false
	}
}

// listener adapts the callback protocol to a single buffered outcome.
// Only the first delivery counts; late callbacks are dropped.
type listener struct {
	conn     Connection
	end      func()
	outcomes chan outcome
}

func (l *listener) OnSetupFinished(status SetupStatus) {
	if status != SetupOK {
		l.end()
		l.deliver(outcome{state: StateUnavailable})
		return
	}

	details, err := l.conn.Referrer()
	l.end()
	if err != nil {
		// A secondary failure reading the payload maps to
		// Unavailable instead of propagating.
		l.deliver(outcome{state: StateUnavailable})
		return
	}
	l.deliver(outcome{state: StateResolved, details: details})
}

func (l *listener) OnServiceDisconnected() {
	l.deliver(outcome{state: StateDisconnected})
}

func (l *listener) deliver(o outcome) {
	select {
	case l.outcomes <- o:
	default:
	}
}
