package netaddr

import (
	"net/netip"
	"strings"
)

// Classify trims text and reports whether it is a syntactically valid CIDR
// expression. Anything that does not parse as a prefix is treated as a bare
// value, including malformed CIDR-looking strings: classification never
// rejects input outright.
func Classify(text string) (value string, isCIDR bool) {
	value = strings.TrimSpace(text)
	if _, err := netip.ParsePrefix(value); err == nil {
		return value, true
	}
	return value, false
}

// Contains reports whether addrText is an address inside the network denoted
// by cidrText. Any parse failure on either side yields false.
func Contains(cidrText, addrText string) bool {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidrText))
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(addrText))
	if err != nil {
		return false
	}
	return prefix.Contains(addr)
}
