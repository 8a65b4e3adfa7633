// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fingerprint aggregates device, app, network, advertising and
// referrer signals into one flat record sent with most outbound
// events.
//
// Collection is strictly best-effort: every signal comes from an
// independent, individually-fallible provider, and any failure
// degrades to an empty or absent field. Collect never fails and never
// blocks past its bound, even when the install-referrer handshake
// stalls.
package fingerprint

import "errors"

// ErrProviderUnavailable marks a field whose provider was not wired on
// this host. Recorded per field, never surfaced to callers.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Connectivity classes reported in the fingerprint. The unusual
// casing is part of the wire vocabulary the attribution service
// already ingests.
const (
	ConnectivityWiFi         = "Wi-Fi"
	ConnectivityCellular     = "Mobile Network"
	ConnectivityEthernet     = "Ethernet"
	ConnectivityUnknown      = "Unknown"
	ConnectivityNotConnected = "Not Connected"
)

// Fingerprint is the flat device-data record. Field names follow the
// attribution service's ingest schema, mixed casing included. The
// idfa/idfv placeholders stay empty on this platform. Referrer fields
// are layered on top only when a resolution attempt succeeded.
type Fingerprint struct {
	// App identity.
	ApplicationName string `json:"application_name"`
	AppVersion      string `json:"app_version"`
	BuildNumber     string `json:"build_number"`
	BundleID        string `json:"bundle_id"`
	Version         string `json:"version"`

	// Device identity.
	DeviceID      string `json:"device_id"`
	DeviceName    string `json:"device_name"`
	Manufacturer  string `json:"manufacturer"`
	Brand         string `json:"brand"`
	SystemVersion string `json:"system_version"`
	UserAgent     string `json:"user_agent"`

	// Network.
	Connectivity string   `json:"connectivity"`
	Carrier      []string `json:"carrier"`
	DeviceIP     string   `json:"device_ip,omitempty"`

	// Advertising identifiers. GAID is empty when the platform
	// reports limited ad tracking; idfa/idfv are not applicable here.
	GAID string `json:"gaid"`
	IDFA string `json:"idfa"`
	IDFV string `json:"idfv"`

	// Install referrer, present only when resolution succeeded.
	InstallRef                    string `json:"install_ref,omitempty"`
	InstallRefURL                 string `json:"install_ref_url,omitempty"`
	InstallRefHashCode            int32  `json:"install_ref_hashCode,omitempty"`
	InstallRefInstallVersion      string `json:"install_ref_install_version,omitempty"`
	InstallRefInstallBeginSeconds int64  `json:"install_ref_installBeginTimestampSeconds,omitempty"`
	InstallRefClickSeconds        int64  `json:"install_ref_referrerClickTimestampSeconds,omitempty"`
	InstallBeginServerSeconds     int64  `json:"installBeginTimestampServerSeconds,omitempty"`
	ReferrerClickServerSeconds    int64  `json:"referrerClickTimestampServerSeconds,omitempty"`
	InstallRefGooglePlayInstant   bool   `json:"install_ref_googlePlayInstantParam,omitempty"`
}
