// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package attrail is the dispatch facade of the Attrail attribution
// SDK. A Client owns the install identity, the durable preference
// store, the fingerprint collector and the HTTP transport, and exposes
// one method per attribution operation. Construct it explicitly with
// NewClient; there is no package-level singleton.
package attrail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/attrail/attrail-go/pkg/deeplink"
	"github.com/attrail/attrail-go/pkg/fingerprint"
	"github.com/attrail/attrail-go/pkg/identity"
	"github.com/attrail/attrail-go/pkg/logging"
	"github.com/attrail/attrail-go/pkg/pii"
	"github.com/attrail/attrail-go/pkg/prefs"
	"github.com/attrail/attrail-go/pkg/referrer"
	"github.com/attrail/attrail-go/pkg/transport"
)

const (
	sdkVersion      = "0.3.0"
	defaultPlatform = "ANDROID"
	signupEvent     = "SIGNUP"
)

// api is the slice of the transport the facade dispatches through.
// Tests substitute a counting stub.
type api interface {
	Init(ctx context.Context, req transport.InitRequest) (*transport.InitResponse, error)
	Trigger(ctx context.Context, req transport.TriggerRequest) (*transport.TriggerResponse, error)
	SetUserData(ctx context.Context, req transport.SetUserDataRequest) error
	CapturePayment(ctx context.Context, req transport.CapturePaymentRequest) error
	RemovePayment(ctx context.Context, req transport.RemovePaymentRequest) error
	TrackEvent(ctx context.Context, req transport.TrackEventRequest) error
	DeeplinkTriggered(ctx context.Context, req transport.DeeplinkTriggeredRequest) error
	UpdatePushToken(ctx context.Context, req transport.UpdatePushTokenRequest) error
	Log(ctx context.Context, req transport.LogRequest) error
	GetProfile(ctx context.Context, token, installInstanceID string) (*transport.BaseResponse, error)
}

// Config assembles a Client. Zero value works for tests (in-memory
// store, no providers, production base URL); real integrations set
// DataDir and the platform providers.
type Config struct {
	// BaseURL of the attribution service. Default:
	// transport.DefaultBaseURL.
	BaseURL string

	// DataDir is the directory for the durable preference store.
	// Required unless InMemory is set.
	DataDir string

	// InMemory keeps all preferences in memory. For tests.
	InMemory bool

	// Platform tag sent with every request. Default "ANDROID".
	Platform string

	Logger *logging.Logger

	// Device-signal providers, all optional. A missing provider leaves
	// its fingerprint fields empty.
	App         fingerprint.AppInfoProvider
	Device      fingerprint.DeviceInfoProvider
	Network     fingerprint.NetworkStateProvider
	Advertising fingerprint.AdvertisingIDProvider
	Carrier     fingerprint.CarrierProvider
	Wireless    fingerprint.WirelessAddrProvider

	// ReferrerDial connects to the platform install-referrer service.
	// Nil disables referrer collection.
	ReferrerDial referrer.Dialer

	// Opener receives deferred deep links for host navigation.
	Opener deeplink.Opener

	// DebugFingerprint dumps every collected fingerprint field at
	// debug level before each dispatch that embeds one.
	DebugFingerprint bool

	// HTTPClient overrides the transport's HTTP client, mainly for
	// tests.
	HTTPClient *http.Client
}

// Client is the dispatch facade. Safe for concurrent use.
type Client struct {
	log       *logging.Logger
	store     *prefs.Store
	ids       *identity.Manager
	policy    *pii.Policy
	collector *fingerprint.Collector
	deeplinks *deeplink.Controller
	api       api
	validate  *validator.Validate
	platform  string
	debugFP   bool
}

// NewClient opens the preference store and wires the subsystem
// components. Callers must Close the client to release the store.
func NewClient(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	var storeCfg prefs.Config
	if cfg.InMemory {
		storeCfg = prefs.InMemoryConfig()
	} else {
		if cfg.DataDir == "" {
			return nil, errors.New("attrail: DataDir is required unless InMemory is set")
		}
		storeCfg = prefs.DefaultConfig(cfg.DataDir)
	}
	storeCfg.Logger = log
	store, err := prefs.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	platform := cfg.Platform
	if platform == "" {
		platform = defaultPlatform
	}

	resolver := referrer.NewResolver(referrer.Config{
		Dial:   cfg.ReferrerDial,
		Logger: log,
	})
	collector := fingerprint.NewCollector(fingerprint.Config{
		App:         cfg.App,
		Device:      cfg.Device,
		Network:     cfg.Network,
		Advertising: cfg.Advertising,
		Carrier:     cfg.Carrier,
		Wireless:    cfg.Wireless,
		Referrer:    resolver,
		Logger:      log,
	})

	c := &Client{
		log:       log,
		store:     store,
		ids:       identity.NewManager(store),
		policy:    pii.NewPolicy(store),
		collector: collector,
		api: transport.NewClient(transport.Config{
			BaseURL:    cfg.BaseURL,
			HTTPClient: cfg.HTTPClient,
			Logger:     log,
		}),
		validate: validator.New(),
		platform: platform,
		debugFP:  cfg.DebugFingerprint,
	}
	c.deeplinks = deeplink.NewController(deeplink.Config{
		Store:  store,
		Opener: cfg.Opener,
		Notify: c.notifyDeeplinkTriggered,
		Logger: log,
	})
	return c, nil
}

// Close releases the preference store. The client must not be used
// afterwards.
func (c *Client) Close() error {
	return c.store.Close()
}

// Init registers the installation with the attribution service and
// persists the API token for subsequent operations. Any deferred deep
// link in the response is parked for TriggerDeeplink. link and source
// annotate the install origin and may be empty.
func (c *Client) Init(ctx context.Context, token, link, source string) (*transport.InitResponse, error) {
	if token == "" {
		return nil, newValidationError("token", "must not be empty")
	}
	if err := c.ids.SetToken(token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	installID, err := c.ids.GetOrCreateInstallID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install id: %w", err)
	}

	fp := c.snapshot(ctx)
	resp, err := c.api.Init(ctx, transport.InitRequest{
		Token:             token,
		PackageVersion:    sdkVersion,
		AppVersion:        fp.AppVersion,
		DeviceData:        fp,
		Platform:          c.platform,
		InstallInstanceID: installID,
		Link:              link,
		Source:            source,
	})
	if err != nil {
		return nil, err
	}

	if err := c.deeplinks.Save(resp.Deeplink); err != nil {
		// The init itself succeeded; losing the parked link only
		// degrades TriggerDeeplink.
		c.log.Warn("failed to park deferred deeplink", "error", err)
	}
	c.log.Info("attrail initialized", "install_instance_id", installID)
	return resp, nil
}

// Signup reports the SIGNUP lifecycle event, carrying the user's data
// with the hashing policy applied. extra is merged into the event data
// next to the device fingerprint.
func (c *Client) Signup(ctx context.Context, user UserData, extra map[string]any) (*transport.TriggerResponse, error) {
	token, installID, err := c.session()
	if err != nil {
		return nil, err
	}
	if err := asValidationError(c.validate.Struct(user)); err != nil {
		return nil, err
	}

	fp := c.snapshot(ctx)
	data := map[string]any{"device_data": fp}
	for k, v := range extra {
		data[k] = v
	}

	return c.api.Trigger(ctx, transport.TriggerRequest{
		Token:             token,
		UserData:          c.userPayload(user),
		Platform:          c.platform,
		Data:              data,
		InstallInstanceID: installID,
		Event:             signupEvent,
	})
}

// TrackEvent reports a custom named event.
func (c *Client) TrackEvent(ctx context.Context, name string, data map[string]any) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if err := c.validate.Var(name, "required"); err != nil {
		return newValidationError("event name", "must not be empty")
	}

	return c.api.TrackEvent(ctx, transport.TrackEventRequest{
		Token:             token,
		EventName:         name,
		EventData:         data,
		Platform:          c.platform,
		DeviceData:        c.snapshot(ctx),
		InstallInstanceID: installID,
	})
}

// CapturePayment records a payment against the user.
func (c *Client) CapturePayment(ctx context.Context, p Payment) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if err := asValidationError(c.validate.Struct(p)); err != nil {
		return err
	}

	return c.api.CapturePayment(ctx, transport.CapturePaymentRequest{
		Token:             token,
		Platform:          c.platform,
		Data:              map[string]any{"device_data": c.snapshot(ctx)},
		PaymentID:         p.PaymentID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Type:              string(p.Type),
		Status:            string(p.Status),
		InstallInstanceID: installID,
	})
}

// RemovePayment removes a previously captured payment, identified by
// payment id, user id, or both.
func (c *Client) RemovePayment(ctx context.Context, r PaymentRemoval) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if r.PaymentID == "" && r.UserID == "" {
		return newValidationError("payment", "requires payment id or user id")
	}

	return c.api.RemovePayment(ctx, transport.RemovePaymentRequest{
		Token:             token,
		Platform:          c.platform,
		Data:              map[string]any{"device_data": c.snapshot(ctx)},
		PaymentID:         r.PaymentID,
		UserID:            r.UserID,
		InstallInstanceID: installID,
	})
}

// SetUserData attaches the user's data to the session, with the
// hashing policy applied.
func (c *Client) SetUserData(ctx context.Context, user UserData) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if err := asValidationError(c.validate.Struct(user)); err != nil {
		return err
	}

	return c.api.SetUserData(ctx, transport.SetUserDataRequest{
		Token:             token,
		UserData:          c.userPayload(user),
		Platform:          c.platform,
		DeviceData:        c.snapshot(ctx),
		InstallInstanceID: installID,
	})
}

// TriggerDeeplink replays the parked deferred deep link through the
// host opener and confirms the trigger upstream. Returns
// deeplink.ErrNoDeeplink when nothing is parked; the link stays parked
// if confirmation fails so the call can be retried.
func (c *Client) TriggerDeeplink(ctx context.Context) error {
	if _, _, err := c.session(); err != nil {
		return err
	}
	return c.deeplinks.Trigger(ctx)
}

// UpdatePushToken registers the device's push-notification token.
func (c *Client) UpdatePushToken(ctx context.Context, pushToken string) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if pushToken == "" {
		return newValidationError("push token", "must not be empty")
	}

	return c.api.UpdatePushToken(ctx, transport.UpdatePushTokenRequest{
		Token:             token,
		Platform:          c.platform,
		PushToken:         pushToken,
		DeviceData:        c.snapshot(ctx),
		InstallInstanceID: installID,
	})
}

// Log forwards a client-side error or warning report to the service.
// level defaults to "error" when empty.
func (c *Client) Log(ctx context.Context, level, message string, meta map[string]any) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	if message == "" {
		return newValidationError("message", "must not be empty")
	}
	if level == "" {
		level = "error"
	}

	return c.api.Log(ctx, transport.LogRequest{
		Token:             token,
		Platform:          c.platform,
		Level:             level,
		Message:           message,
		DeviceData:        c.snapshot(ctx),
		InstallInstanceID: installID,
		Meta:              meta,
	})
}

// GetProfile fetches the attribution profile for this install.
func (c *Client) GetProfile(ctx context.Context) (*transport.BaseResponse, error) {
	token, installID, err := c.session()
	if err != nil {
		return nil, err
	}
	return c.api.GetProfile(ctx, token, installID)
}

// EnablePIIHashing switches SHA-256 hashing of user name, email and
// phone on or off for subsequent dispatches. The setting persists
// across restarts.
func (c *Client) EnablePIIHashing(enabled bool) error {
	return c.policy.SetEnabled(enabled)
}

// PIIHashingEnabled reports the current hashing policy.
func (c *Client) PIIHashingEnabled() bool {
	return c.policy.Enabled()
}

// InstallInstanceID returns the stable per-install identifier,
// creating it on first use.
func (c *Client) InstallInstanceID() (string, error) {
	return c.ids.GetOrCreateInstallID()
}

// session loads the token and install id, failing fast with
// ErrNotInitialized before any network traffic when no token is set.
func (c *Client) session() (token, installID string, err error) {
	token, err = c.ids.Token()
	if err != nil {
		return "", "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", "", ErrNotInitialized
	}
	installID, err = c.ids.GetOrCreateInstallID()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve install id: %w", err)
	}
	return token, installID, nil
}

// snapshot collects a fresh fingerprint for this dispatch.
func (c *Client) snapshot(ctx context.Context) fingerprint.Fingerprint {
	fp := c.collector.Collect(ctx)
	if c.debugFP {
		fingerprint.LogFields(c.log, fp)
	}
	return fp
}

// userPayload converts the input record to the wire form, hashing
// name, email and phone when the policy is enabled. Empty fields are
// never hashed so they stay absent from the payload.
func (c *Client) userPayload(user UserData) transport.UserPayload {
	name, email, phone := user.Name, user.Email, user.Phone
	if c.policy.Enabled() {
		if name != "" {
			name = pii.Hash(name)
		}
		if email != "" {
			email = pii.Hash(email)
		}
		if phone != "" {
			phone = pii.Hash(phone)
		}
	}
	return transport.UserPayload{
		ID:                 user.ID,
		Name:               name,
		Email:              email,
		Phone:              phone,
		MixpanelDistinctID: user.MixpanelDistinctID,
		AmplitudeDeviceID:  user.AmplitudeDeviceID,
		PosthogDistinctID:  user.PosthogDistinctID,
		UserCreatedAt:      user.UserCreatedAt,
		IsFirstTimeUser:    user.IsFirstTimeUser,
	}
}

// notifyDeeplinkTriggered is the deeplink controller's upstream
// confirmation hook.
func (c *Client) notifyDeeplinkTriggered(ctx context.Context, _ string) error {
	token, installID, err := c.session()
	if err != nil {
		return err
	}
	return c.api.DeeplinkTriggered(ctx, transport.DeeplinkTriggeredRequest{
		Token:             token,
		DeviceData:        c.snapshot(ctx),
		InstallInstanceID: installID,
		Platform:          c.platform,
	})
}
