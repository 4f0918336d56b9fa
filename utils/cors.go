package utils

import (
	"net/netip"
	"net/url"
	"strings"
)

// lanPrefixes are the address ranges a browser on the local network can
// legitimately originate from: RFC1918, loopback and link-local.
var lanPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// IsAllowedOrigin reports whether an Origin header should be trusted.
// The player UI runs on TVs and boxes inside the household, so
// localhost, private and link-local IPs, .local mDNS names and bare
// single-label LAN hostnames are allowed; public internet origins are
// not.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := parsed.Hostname()
	switch {
	case host == "localhost":
		return true
	case strings.HasSuffix(host, ".local"):
		return true
	case !strings.Contains(host, "."):
		// Single-label hostnames only resolve on the LAN.
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, prefix := range lanPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
