// Package sizeutil parses the address and length flag formats accepted by
// the CLI: hexadecimal ("0x8000000"), decimal ("1024"), and suffixed
// byte counts ("64K", "2M").
package sizeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUint32 parses s as a hexadecimal address (0x prefix), a plain
// decimal integer, or a byte count with a K/M suffix (case-insensitive,
// binary multiples).
func ParseUint32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}

	if rest, ok := trimHexPrefix(s); ok {
		v, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex value %q: %w", s, err)
		}
		return uint32(v), nil
	}

	if mult, rest, ok := suffixMultiplier(s); ok {
		v, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid size value %q: %w", s, err)
		}
		return uint32(v) * mult, nil
	}

	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}

func trimHexPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}

func suffixMultiplier(s string) (uint32, string, bool) {
	if len(s) == 0 {
		return 0, s, false
	}
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		return 1024, s[:len(s)-1], true
	case 'm', 'M':
		return 1024 * 1024, s[:len(s)-1], true
	default:
		return 0, s, false
	}
}
