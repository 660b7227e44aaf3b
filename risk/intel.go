package risk

import (
	"net"
	"strings"
	"sync"
)

// IntelProvider answers reputation questions about an address
type IntelProvider interface {
	IsKnownBad(ipAddress string) bool
	IsVpnOrTor(ipAddress string) bool
}

// StaticIntel is an in-process reputation list fed from configuration or a
// periodic feed import. Lookups are exact-IP or CIDR.
type StaticIntel struct {
	mu        sync.RWMutex
	badIPs    map[string]bool
	badCIDRs  []*net.IPNet
	vpnIPs    map[string]bool
	vpnCIDRs  []*net.IPNet
}

// NewStaticIntel builds a reputation list from IP and CIDR strings.
// Malformed entries are skipped.
func NewStaticIntel(knownBad, vpnOrTor []string) *StaticIntel {
	s := &StaticIntel{
		badIPs: make(map[string]bool),
		vpnIPs: make(map[string]bool),
	}
	s.badCIDRs = loadEntries(knownBad, s.badIPs)
	s.vpnCIDRs = loadEntries(vpnOrTor, s.vpnIPs)
	return s
}

func loadEntries(entries []string, exact map[string]bool) []*net.IPNet {
	var cidrs []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, ipnet, err := net.ParseCIDR(e); err == nil {
				cidrs = append(cidrs, ipnet)
			}
			continue
		}
		exact[e] = true
	}
	return cidrs
}

// IsKnownBad reports whether the address is on the bad-reputation list
func (s *StaticIntel) IsKnownBad(ipAddress string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matches(ipAddress, s.badIPs, s.badCIDRs)
}

// IsVpnOrTor reports whether the address is a known VPN or Tor exit
func (s *StaticIntel) IsVpnOrTor(ipAddress string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matches(ipAddress, s.vpnIPs, s.vpnCIDRs)
}

func matches(ipAddress string, exact map[string]bool, cidrs []*net.IPNet) bool {
	if exact[ipAddress] {
		return true
	}
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return false
	}
	for _, c := range cidrs {
		if c.Contains(ip) {
			return true
		}
	}
	return false
}
