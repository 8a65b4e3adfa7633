// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"encoding/json"

	"github.com/attrail/attrail-go/pkg/fingerprint"
)

// Request bodies. Every event type gets an explicit record with the
// exact required/optional field split; there are no loosely-typed
// request maps. The one map that remains, the per-event Data bucket,
// exists because the service accepts arbitrary caller-supplied keys
// next to device_data there.

// UserPayload is the user-data block shared by signup and
// set-user-data. Name, Email and Phone may arrive pre-hashed depending
// on the PII policy; the transport does not care.
type UserPayload struct {
	ID                 string `json:"id"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	MixpanelDistinctID string `json:"mixpanel_distinct_id,omitempty"`
	AmplitudeDeviceID  string `json:"amplitude_device_id,omitempty"`
	PosthogDistinctID  string `json:"posthog_distinct_id,omitempty"`
	UserCreatedAt      string `json:"user_created_at,omitempty"`
	IsFirstTimeUser    *bool  `json:"is_first_time_user,omitempty"`
}

// InitRequest registers the installation with the service.
type InitRequest struct {
	Token             string                  `json:"token"`
	PackageVersion    string                  `json:"package_version"`
	AppVersion        string                  `json:"app_version"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	Platform          string                  `json:"platform"`
	InstallInstanceID string                  `json:"install_instance_id"`
	Link              string                  `json:"link,omitempty"`
	Source            string                  `json:"source,omitempty"`
}

// TriggerRequest reports a lifecycle event such as SIGNUP.
type TriggerRequest struct {
	Token             string         `json:"token"`
	UserData          UserPayload    `json:"user_data"`
	Platform          string         `json:"platform"`
	Data              map[string]any `json:"data"`
	InstallInstanceID string         `json:"install_instance_id"`
	Event             string         `json:"event,omitempty"`
}

// SetUserDataRequest attaches user data to the current session.
type SetUserDataRequest struct {
	Token             string                  `json:"token"`
	UserData          UserPayload             `json:"user_data"`
	Platform          string                  `json:"platform"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	InstallInstanceID string                  `json:"install_instance_id"`
}

// CapturePaymentRequest records a payment.
type CapturePaymentRequest struct {
	Token             string         `json:"token"`
	Platform          string         `json:"platform"`
	Data              map[string]any `json:"data"`
	PaymentID         string         `json:"payment_id"`
	UserID            string         `json:"user_id"`
	Amount            float64        `json:"amount"`
	Type              string         `json:"type,omitempty"`
	Status            string         `json:"status,omitempty"`
	InstallInstanceID string         `json:"install_instance_id"`
}

// RemovePaymentRequest removes a previously captured payment.
type RemovePaymentRequest struct {
	Token             string         `json:"token"`
	Platform          string         `json:"platform"`
	Data              map[string]any `json:"data"`
	PaymentID         string         `json:"payment_id"`
	UserID            string         `json:"user_id"`
	InstallInstanceID string         `json:"install_instance_id"`
}

// TrackEventRequest reports a custom named event.
type TrackEventRequest struct {
	Token             string                  `json:"token"`
	EventName         string                  `json:"event_name"`
	EventData         map[string]any          `json:"event_data,omitempty"`
	Platform          string                  `json:"platform"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	InstallInstanceID string                  `json:"install_instance_id"`
}

// DeeplinkTriggeredRequest notifies that a stored deferred deep link
// was opened on-device.
type DeeplinkTriggeredRequest struct {
	Token             string                  `json:"token"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	InstallInstanceID string                  `json:"install_instance_id"`
	Platform          string                  `json:"platform"`
}

// UpdatePushTokenRequest registers a push-notification token.
type UpdatePushTokenRequest struct {
	Token             string                  `json:"token"`
	Platform          string                  `json:"platform"`
	PushToken         string                  `json:"push_token"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	InstallInstanceID string                  `json:"install_instance_id"`
}

// LogRequest reports a client-side error or warning to the service.
type LogRequest struct {
	Token             string                  `json:"token"`
	Platform          string                  `json:"platform"`
	Level             string                  `json:"level"`
	Message           string                  `json:"message"`
	DeviceData        fingerprint.Fingerprint `json:"device_data"`
	InstallInstanceID string                  `json:"install_instance_id"`
	Meta              map[string]any          `json:"meta,omitempty"`
}

// Response bodies.

// BaseResponse is the plain acknowledgment envelope.
type BaseResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IPLocationData is the service's geolocation of the reporting IP.
type IPLocationData struct {
	IP           string  `json:"ip,omitempty"`
	City         string  `json:"city,omitempty"`
	CountryLong  string  `json:"countryLong,omitempty"`
	CountryShort string  `json:"countryShort,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Region       string  `json:"region,omitempty"`
	TimeZone     string  `json:"timeZone,omitempty"`
	ZipCode      string  `json:"zipCode,omitempty"`
}

// CampaignData describes the campaign attributed to this install.
type CampaignData struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	AdNetwork      string `json:"ad_network,omitempty"`
	GroupName      string `json:"group_name,omitempty"`
	AssetGroupName string `json:"asset_group_name,omitempty"`
	AssetName      string `json:"asset_name,omitempty"`
}

// GeneralResponse carries the attribution fields shared by init and
// trigger responses. A non-empty Deeplink is the deferred-deep-link
// signal the facade persists.
type GeneralResponse struct {
	IPLocationData *IPLocationData `json:"ip_location_data,omitempty"`
	Deeplink       string          `json:"deeplink,omitempty"`
	RootDomain     *bool           `json:"root_domain,omitempty"`
}

// InitResponse is returned by the init endpoint.
type InitResponse struct {
	GeneralResponse
	CampaignData *CampaignData `json:"campaign_data,omitempty"`
}

// TriggerResponse is returned by the trigger endpoint.
type TriggerResponse struct {
	GeneralResponse
	Trigger *bool `json:"trigger,omitempty"`
}
