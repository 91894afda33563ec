// Package version provides protocol version parsing, comparison, and
// WebSocket subprotocol helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the envelope protocol version implemented by this library.
const Current = "1.0"

// subprotocolPrefix prefixes the negotiated Sec-WebSocket-Protocol token.
const subprotocolPrefix = "eventlink.v"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Subprotocol returns the WebSocket subprotocol token for a major version:
// "eventlink.vN".
func Subprotocol(major uint16) string {
	return subprotocolPrefix + strconv.FormatUint(uint64(major), 10)
}

// MajorFromSubprotocol extracts the major version from a subprotocol token.
func MajorFromSubprotocol(token string) (uint16, error) {
	if !strings.HasPrefix(token, subprotocolPrefix) {
		return 0, fmt.Errorf("not an eventlink subprotocol: %q", token)
	}

	suffix := token[len(subprotocolPrefix):]
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in subprotocol: %q", token)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in subprotocol %q: %w", token, err)
	}

	return uint16(major), nil
}

// SupportedSubprotocols returns the subprotocol tokens for all supported
// major versions. Currently only major version 1.
func SupportedSubprotocols() []string {
	current, _ := Parse(Current)
	return []string{Subprotocol(current.Major)}
}
