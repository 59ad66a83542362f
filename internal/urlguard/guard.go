// Package urlguard vets URLs before any outbound request is made on behalf
// of model-directed tools. It is a pure syntactic/address-literal check and
// never performs DNS resolution.
package urlguard

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// blockedHosts are rejected by name regardless of how they would resolve.
var blockedHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// Check returns nil when rawURL is an http(s) URL that is safe to fetch, or a
// descriptive error otherwise. Hostnames that are IP literals pointing at
// loopback, private, link-local or otherwise reserved ranges are rejected.
// Hostnames that require DNS to classify are allowed; resolution-time
// protections are out of scope here.
func Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("missing hostname")
	}
	if _, blocked := blockedHosts[host]; blocked {
		return fmt.Errorf("blocked host %q", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if !isPublicIP(ip) {
			return fmt.Errorf("non-public address %q", host)
		}
	}
	return nil
}

// IsSafe is a convenience wrapper for callers that only need a boolean.
func IsSafe(rawURL string) bool {
	return Check(rawURL) == nil
}

func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsMulticast():
		return false
	}
	// Reserved ranges not covered by the helpers above.
	for _, cidr := range reservedCIDRs {
		if cidr.Contains(ip) {
			return false
		}
	}
	return true
}

var reservedCIDRs = mustParseCIDRs(
	"100.64.0.0/10",  // carrier-grade NAT
	"192.0.0.0/24",   // IETF protocol assignments
	"192.0.2.0/24",   // TEST-NET-1
	"198.18.0.0/15",  // benchmarking
	"198.51.100.0/24",// TEST-NET-2
	"203.0.113.0/24", // TEST-NET-3
	"240.0.0.0/4",    // reserved for future use
	"100::/64",       // IPv6 discard prefix
	"2001:db8::/32",  // IPv6 documentation
)

func mustParseCIDRs(specs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(specs))
	for _, s := range specs {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
