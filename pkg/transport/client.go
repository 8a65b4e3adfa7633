// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transport implements the HTTP client for the attribution
// service. Every endpoint gets a typed request record and a typed
// method; callers never build URLs or JSON by hand.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/attrail/attrail-go/pkg/logging"
)

var tracer = otel.Tracer("attrail.transport")

const (
	// DefaultBaseURL is the production attribution endpoint.
	DefaultBaseURL = "https://api.attrail.io"

	defaultTimeout = 30 * time.Second
)

// Endpoint paths. These are wire contract, not configuration.
const (
	pathInit              = "/api/client/init"
	pathTrigger           = "/api/client/trigger"
	pathSetUserData       = "/api/client/set-user-data"
	pathCapturePayment    = "/api/client/capture-payment"
	pathRemovePayment     = "/api/client/remove-captured-payment"
	pathCaptureEvent      = "/api/client/capture-event"
	pathDeeplinkTriggered = "/api/client/deeplink-triggered"
	pathGetProfile        = "/api/client/getProfile"
	pathUpdatePushToken   = "/api/client/updatePushToken"
	pathLog               = "/api/client/log"
)

// TransportError is returned when the service answers with a non-2xx
// status. Body holds the raw response body for diagnostics.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("attribution api: status %d: %s", e.Status, e.Body)
}

// Config controls a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout defaults to 30s and only applies when HTTPClient is nil.
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client talks to the attribution service.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

// NewClient builds a Client, filling in defaults for anything unset.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Client{baseURL: baseURL, http: httpClient, log: log}
}

// Init registers the installation and returns the attribution data,
// including any deferred deep link assigned to this device.
func (c *Client) Init(ctx context.Context, req InitRequest) (*InitResponse, error) {
	var out InitResponse
	if err := c.post(ctx, pathInit, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trigger reports a lifecycle event such as SIGNUP.
func (c *Client) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResponse, error) {
	var out TriggerResponse
	if err := c.post(ctx, pathTrigger, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserData attaches user data to the current session.
func (c *Client) SetUserData(ctx context.Context, req SetUserDataRequest) error {
	return c.post(ctx, pathSetUserData, req, nil)
}

// CapturePayment records a payment.
func (c *Client) CapturePayment(ctx context.Context, req CapturePaymentRequest) error {
	return c.post(ctx, pathCapturePayment, req, nil)
}

// RemovePayment removes a previously captured payment.
func (c *Client) RemovePayment(ctx context.Context, req RemovePaymentRequest) error {
	return c.post(ctx, pathRemovePayment, req, nil)
}

// TrackEvent reports a custom named event.
func (c *Client) TrackEvent(ctx context.Context, req TrackEventRequest) error {
	return c.post(ctx, pathCaptureEvent, req, nil)
}

// DeeplinkTriggered confirms that the stored deferred deep link was
// opened on-device.
func (c *Client) DeeplinkTriggered(ctx context.Context, req DeeplinkTriggeredRequest) error {
	return c.post(ctx, pathDeeplinkTriggered, req, nil)
}

// UpdatePushToken registers a push-notification token.
func (c *Client) UpdatePushToken(ctx context.Context, req UpdatePushTokenRequest) error {
	return c.post(ctx, pathUpdatePushToken, req, nil)
}

// Log forwards a client-side error report to the service.
func (c *Client) Log(ctx context.Context, req LogRequest) error {
	return c.post(ctx, pathLog, req, nil)
}

// GetProfile fetches the attribution profile for this install.
func (c *Client) GetProfile(ctx context.Context, token, installInstanceID string) (*BaseResponse, error) {
	ctx, span := tracer.Start(ctx, "transport.GetProfile")
	defer span.End()

	url := c.baseURL + pathGetProfile + "?install_instance_id=" + installInstanceID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", token)

	var out BaseResponse
	if err := c.do(httpReq, span.SetStatus, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends a JSON body to path and, when out is non-nil, decodes the
// response into it. An empty 2xx body with a non-nil out is accepted.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	ctx, span := tracer.Start(ctx, "transport.post")
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	payload, err := json.Marshal(body)
	if err != nil {
		span.SetStatus(codes.Error, "marshal failed")
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		span.SetStatus(codes.Error, "request build failed")
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	return c.do(httpReq, span.SetStatus, out)
}

func (c *Client) do(req *http.Request, setStatus func(codes.Code, string), out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		setStatus(codes.Error, "request failed")
		return fmt.Errorf("failed to reach attribution api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		setStatus(codes.Error, "read failed")
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		setStatus(codes.Error, "non-2xx response")
		c.log.Warn("attribution api rejected request",
			"path", req.URL.Path,
			"status", resp.StatusCode)
		return &TransportError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			setStatus(codes.Error, "decode failed")
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
