// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"net"
	"strconv"
	"strings"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
)

// DetectedHostAddress returns the first non-loopback address of an up
// interface, preferring IPv4, or "localhost".
func DetectedHostAddress() string {
	netInterfaces, err := net.Interfaces()
	if err != nil {
		logger.Info().Err(err).Msg("failed to detect net interfaces")
		return "localhost"
	}

	if v4Address := selectIP(netInterfaces, true); v4Address != "" {
		return v4Address
	}
	if v6Address := selectIP(netInterfaces, false); v6Address != "" {
		return v6Address
	}
	return "localhost"
}

func selectIP(netInterfaces []net.Interface, v4 bool) string {
	for _, netInterface := range netInterfaces {
		if netInterface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := netInterface.Addrs()
		if err != nil {
			logger.Debug().Err(err).Str("interface", netInterface.Name).Msg("get interface addresses")
			continue
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			isV4 := ipNet.IP.To4() != nil
			if v4 && isV4 {
				return ipNet.IP.String()
			}
			// Link-local IPv6 needs a zone and cannot be advertised.
			if !v4 && !isV4 && !ipNet.IP.IsLinkLocalUnicast() {
				return ipNet.IP.String()
			}
		}
	}
	return ""
}

// JoinHostPort joins host and port, accepting an already bracketed IPv6 host.
func JoinHostPort(host string, port int) string {
	portStr := strconv.Itoa(port)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host + ":" + portStr
	}
	return net.JoinHostPort(host, portStr)
}

// AdvertiseAddress returns the address peers should dial for a listener
// bound to listenAddr. An unspecified host is replaced with the detected
// host address.
func AdvertiseAddress(listenAddr string) (string, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", err
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = DetectedHostAddress()
	}
	return JoinHostPort(host, port), nil
}
