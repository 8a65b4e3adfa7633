// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fingerprint

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/attrail/attrail-go/pkg/logging"
	"github.com/attrail/attrail-go/pkg/referrer"
)

var tracer = otel.Tracer("attrail.fingerprint")

// Config wires the collector's providers. Every field is optional; a
// nil provider simply leaves its fields empty.
type Config struct {
	App         AppInfoProvider
	Device      DeviceInfoProvider
	Network     NetworkStateProvider
	Advertising AdvertisingIDProvider
	Carrier     CarrierProvider
	Wireless    WirelessAddrProvider

	// Referrer performs the install-referrer handshake. Nil disables
	// referrer collection.
	Referrer *referrer.Resolver

	// Logger for per-field degradation notices. Default:
	// logging.Default().
	Logger *logging.Logger

	// fallbackAddr overrides interface enumeration in tests.
	fallbackAddr func() string
}

// Collector assembles device fingerprints. Construct once, reuse for
// every dispatch; each Collect produces a fresh snapshot (no caching).
type Collector struct {
	cfg    Config
	logger *logging.Logger
}

// NewCollector creates a Collector from config.
func NewCollector(cfg Config) *Collector {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.fallbackAddr == nil {
		cfg.fallbackAddr = firstNonLoopbackAddr
	}
	return &Collector{cfg: cfg, logger: cfg.Logger}
}

// probeResult is one field's outcome: either a value or the cause of
// its absence. Causes are logged, never propagated.
type probeResult[T any] struct {
	value T
	err   error
}

// probe runs one provider query, converting panics and nil providers
// into recorded errors.
func probe[T any](ctx context.Context, fn func(context.Context) (T, error)) (res probeResult[T]) {
	defer func() {
		if p := recover(); p != nil {
			res.err = fmt.Errorf("provider panic: %v", p)
		}
	}()
	if fn == nil {
		res.err = ErrProviderUnavailable
		return res
	}
	res.value, res.err = fn(ctx)
	return res
}

// Collect gathers a fresh fingerprint. It never fails: each signal
// degrades independently to an empty or absent field. The referrer
// step is bounded by the resolver's internal timeout, so Collect
// cannot wait forever on a stalled handshake.
func (c *Collector) Collect(ctx context.Context) Fingerprint {
	ctx, span := tracer.Start(ctx, "fingerprint.Collect")
	defer span.End()

	var (
		app     probeResult[AppInfo]
		device  probeResult[DeviceInfo]
		network probeResult[NetworkState]
		adInfo  probeResult[AdvertisingInfo]
		carrier probeResult[string]
		wifi    probeResult[uint32]

		refDetails referrer.Details
		refOK      bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app = probe(gctx, appFn(c.cfg.App))
		return nil
	})
	g.Go(func() error {
		device = probe(gctx, deviceFn(c.cfg.Device))
		return nil
	})
	g.Go(func() error {
		network = probe(gctx, networkFn(c.cfg.Network))
		return nil
	})
	g.Go(func() error {
		adInfo = probe(gctx, advertisingFn(c.cfg.Advertising))
		return nil
	})
	g.Go(func() error {
		carrier = probe(gctx, carrierFn(c.cfg.Carrier))
		return nil
	})
	g.Go(func() error {
		wifi = probe(gctx, wirelessFn(c.cfg.Wireless))
		return nil
	})
	g.Go(func() error {
		if c.cfg.Referrer != nil {
			refDetails, refOK = c.cfg.Referrer.Resolve(gctx)
		}
		return nil
	})
	_ = g.Wait() // probes never return errors

	c.noteFailure("app", app.err)
	c.noteFailure("device", device.err)
	c.noteFailure("network", network.err)
	c.noteFailure("advertising", adInfo.err)
	c.noteFailure("carrier", carrier.err)
	c.noteFailure("wireless_addr", wifi.err)

	fp := Fingerprint{
		ApplicationName: app.value.Name,
		AppVersion:      app.value.Version,
		BuildNumber:     app.value.BuildNumber,
		BundleID:        app.value.BundleID,
		Version:         app.value.Version,

		DeviceID:      device.value.DeviceID,
		Manufacturer:  device.value.Manufacturer,
		Brand:         device.value.Brand,
		SystemVersion: device.value.SystemVersion,
		UserAgent:     device.value.UserAgent,

		IDFA:    "",
		IDFV:    "",
		Carrier: []string{},
	}
	if device.value.Manufacturer != "" || device.value.Model != "" {
		fp.DeviceName = device.value.Manufacturer + " " + device.value.Model
	}

	if network.err != nil {
		fp.Connectivity = ConnectivityUnknown
	} else {
		fp.Connectivity = classifyConnectivity(network.value)
	}

	// Limited ad tracking means absent, not zero-filled.
	if adInfo.err == nil && !adInfo.value.LimitAdTracking {
		fp.GAID = adInfo.value.ID
	}

	if carrier.err == nil && carrier.value != "" {
		fp.Carrier = []string{carrier.value}
	}

	if wifi.err == nil && wifi.value != 0 {
		fp.DeviceIP = dottedQuad(wifi.value)
	} else {
		fp.DeviceIP = c.cfg.fallbackAddr()
	}

	if refOK {
		c.layerReferrer(&fp, refDetails)
	}
	span.SetAttributes(attribute.Bool("referrer.resolved", refOK))

	return fp
}

// layerReferrer copies referrer details onto the fingerprint.
func (c *Collector) layerReferrer(fp *Fingerprint, d referrer.Details) {
	fp.InstallRef = d.InstallReferrer
	fp.InstallRefURL = parseableURL(d.InstallReferrer)
	fp.InstallRefHashCode = referrerHashCode(d.InstallReferrer)
	fp.InstallRefInstallVersion = d.InstallVersion
	fp.InstallRefInstallBeginSeconds = d.InstallBeginTimestampSeconds
	fp.InstallRefClickSeconds = d.ReferrerClickTimestampSeconds
	fp.InstallBeginServerSeconds = d.InstallBeginTimestampServerSeconds
	fp.ReferrerClickServerSeconds = d.ReferrerClickTimestampServerSeconds
	fp.InstallRefGooglePlayInstant = d.GooglePlayInstant
}

// parseableURL returns s when it parses as an absolute URL, "" when it
// does not. Most referrer strings are bare query strings, not URLs.
func parseableURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return u.String()
}

func (c *Collector) noteFailure(field string, err error) {
	if err == nil {
		return
	}
	c.logger.Debug("fingerprint field unavailable", "field", field, "error", err.Error())
}

// The *Fn helpers lift a possibly-nil provider into the closure shape
// probe expects; probe records a nil closure as ErrProviderUnavailable.

func appFn(p AppInfoProvider) func(context.Context) (AppInfo, error) {
	if p == nil {
		return nil
	}
	return p.AppInfo
}

func deviceFn(p DeviceInfoProvider) func(context.Context) (DeviceInfo, error) {
	if p == nil {
		return nil
	}
	return p.DeviceInfo
}

func networkFn(p NetworkStateProvider) func(context.Context) (NetworkState, error) {
	if p == nil {
		return nil
	}
	return p.NetworkState
}

func advertisingFn(p AdvertisingIDProvider) func(context.Context) (AdvertisingInfo, error) {
	if p == nil {
		return nil
	}
	return p.AdvertisingID
}

func carrierFn(p CarrierProvider) func(context.Context) (string, error) {
	if p == nil {
		return nil
	}
	return p.CarrierName
}

func wirelessFn(p WirelessAddrProvider) func(context.Context) (uint32, error) {
	if p == nil {
		return nil
	}
	return p.WirelessIPv4
}
