// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fingerprint

import (
	"fmt"
	"net"
	"unicode/utf16"
)

// dottedQuad decodes a native little-endian 32-bit IPv4 address into
// dotted-quad form. The lowest byte is the first octet, so 0x0100007F
// decodes to "127.0.0.1".
func dottedQuad(raw uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		raw&0xff,
		raw>>8&0xff,
		raw>>16&0xff,
		raw>>24&0xff,
	)
}

// firstNonLoopbackAddr enumerates network interfaces and returns the
// first non-loopback IP address, or "" when none is found. Used as the
// fallback when no wireless address is available.
func firstNonLoopbackAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		return ip.String()
	}
	return ""
}

// referrerHashCode computes the 32-bit hash the attribution service
// keys referrer strings by: h = 31*h + c over UTF-16 code units.
func referrerHashCode(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

// classifyConnectivity maps a network snapshot onto the wire
// vocabulary. Capability flags are the preferred, newest-API path;
// the legacy coarse type is the fallback.
func classifyConnectivity(st NetworkState) string {
	if !st.Connected {
		return ConnectivityNotConnected
	}
	if st.HasCapabilities {
		switch {
		case st.Capabilities&CapWiFi != 0:
			return ConnectivityWiFi
		case st.Capabilities&CapCellular != 0:
			return ConnectivityCellular
		case st.Capabilities&CapEthernet != 0:
			return ConnectivityEthernet
		default:
			return ConnectivityUnknown
		}
	}
	switch st.LegacyType {
	case LegacyWiFi:
		return ConnectivityWiFi
	case LegacyMobile:
		return ConnectivityCellular
	default:
		return ConnectivityUnknown
	}
}
