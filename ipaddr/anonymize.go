// Package ipaddr provides IP address anonymization for stored client
// addresses: an address is replaced by the network prefix that contains it.
package ipaddr

import (
	"fmt"
	"net/netip"

	"github.com/getsesame/sesame/domain"
)

// Default mask lengths: a /16 for IPv4 and a /64 for IPv6.
const (
	DefaultV4PrefixBits = 16
	DefaultV6PrefixBits = 64
)

// Anonymize parses address, masks it to the prefix length for its version,
// and returns the network address in canonical textual form. Non-aligned
// input is permitted and rounds down to its containing network.
//
//	Anonymize("192.168.178.1", 16, 64) == "192.168.0.0"
//	Anonymize("::1", 16, 64) == "::"
//
// Unparseable input returns ErrInvalidAddress; this indicates caller misuse
// and must propagate.
func Anonymize(address string, v4Bits, v6Bits int) (string, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}

	bits := v6Bits
	if addr.Is4() {
		bits = v4Bits
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", fmt.Errorf("%w: /%d mask for %q", domain.ErrInvalidAddress, bits, address)
	}
	return prefix.Addr().String(), nil
}
