// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fingerprint

import "context"

// AppInfo is the host application's identity.
type AppInfo struct {
	Name        string
	Version     string
	BuildNumber string
	BundleID    string
}

// DeviceInfo is the device's static identity. DeviceID is the
// platform's locale-free device identifier.
type DeviceInfo struct {
	DeviceID      string
	Manufacturer  string
	Brand         string
	Model         string
	SystemVersion string
	UserAgent     string
}

// Capability is a bitmask of transports on the active network,
// mirroring the platform's capability flags.
type Capability uint32

const (
	CapWiFi Capability = 1 << iota
	CapCellular
	CapEthernet
)

// LegacyNetworkType is the older API's coarse network type, used only
// when capability flags are unavailable.
type LegacyNetworkType int

const (
	LegacyNone LegacyNetworkType = iota
	LegacyWiFi
	LegacyMobile
	LegacyOther
)

// NetworkState is a snapshot of the active network. When
// HasCapabilities is true the Capabilities bits are authoritative;
// otherwise classification falls back to LegacyType.
type NetworkState struct {
	Connected       bool
	HasCapabilities bool
	Capabilities    Capability
	LegacyType      LegacyNetworkType
}

// AdvertisingInfo is the platform's advertising identifier along with
// the user's tracking opt-out.
type AdvertisingInfo struct {
	ID              string
	LimitAdTracking bool
}

// Providers are the individually-fallible platform queries feeding the
// collector. Any of them may return an error or panic; the collector
// absorbs both.
type (
	// AppInfoProvider reports the host app's identity.
	AppInfoProvider interface {
		AppInfo(ctx context.Context) (AppInfo, error)
	}

	// DeviceInfoProvider reports the device's static identity.
	DeviceInfoProvider interface {
		DeviceInfo(ctx context.Context) (DeviceInfo, error)
	}

	// NetworkStateProvider reports the active network snapshot.
	NetworkStateProvider interface {
		NetworkState(ctx context.Context) (NetworkState, error)
	}

	// AdvertisingIDProvider reports the advertising identifier.
	AdvertisingIDProvider interface {
		AdvertisingID(ctx context.Context) (AdvertisingInfo, error)
	}

	// CarrierProvider reports the mobile carrier name; empty means no
	// carrier.
	CarrierProvider interface {
		CarrierName(ctx context.Context) (string, error)
	}

	// WirelessAddrProvider reports the wireless interface's IPv4
	// address in the platform's native little-endian 32-bit form.
	// Zero means no wireless address.
	WirelessAddrProvider interface {
		WirelessIPv4(ctx context.Context) (uint32, error)
	}
)

// Func adapters so hosts can wire plain closures as providers.
type (
	AppInfoFunc       func(ctx context.Context) (AppInfo, error)
	DeviceInfoFunc    func(ctx context.Context) (DeviceInfo, error)
	NetworkStateFunc  func(ctx context.Context) (NetworkState, error)
	AdvertisingIDFunc func(ctx context.Context) (AdvertisingInfo, error)
	CarrierFunc       func(ctx context.Context) (string, error)
	WirelessAddrFunc  func(ctx context.Context) (uint32, error)
)

func (f AppInfoFunc) AppInfo(ctx context.Context) (AppInfo, error) { return f(ctx) }

func (f DeviceInfoFunc) DeviceInfo(ctx context.Context) (DeviceInfo, error) { return f(ctx) }

func (f NetworkStateFunc) NetworkState(ctx context.Context) (NetworkState, error) {
	return f(ctx)
}

func (f AdvertisingIDFunc) AdvertisingID(ctx context.Context) (AdvertisingInfo, error) {
	return f(ctx)
}

func (f CarrierFunc) CarrierName(ctx context.Context) (string, error) { return f(ctx) }

func (f WirelessAddrFunc) WirelessIPv4(ctx context.Context) (uint32, error) { return f(ctx) }
