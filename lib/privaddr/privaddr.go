// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package privaddr classifies raw byte buffers as private IPv4 addresses.
// The functions are pure so they can be shared between address substitution
// and diagnostic scanning.
package privaddr

// IsPrivate reports whether b is a 4-byte buffer holding an address in one
// of the reserved non-routable ranges (10/8, 192.168/16, 172.16/12).
// Buffers of any other length are never private.
func IsPrivate(b []byte) bool {
	if len(b) != 4 {
		return false
	}
	switch {
	case b[0] == 10:
		return true
	case b[0] == 192 && b[1] == 168:
		return true
	case b[0] == 172 && b[1] >= 16 && b[1] <= 31:
		return true
	}
	return false
}

// ScanOffsets returns, in ascending order, every offset in buf where a
// private-address byte pattern begins, using the same range rules as
// IsPrivate applied over the raw bytes. The match is on the class-specific
// leading bytes only, so the caller should treat hits as candidates, not
// certainties.
func ScanOffsets(buf []byte) []int {
	var offs []int
	for i := 0; i < len(buf); i++ {
		switch {
		case buf[i] == 10:
			offs = append(offs, i)
		case i+1 < len(buf) && buf[i] == 192 && buf[i+1] == 168:
			offs = append(offs, i)
		case i+1 < len(buf) && buf[i] == 172 && buf[i+1] >= 16 && buf[i+1] <= 31:
			offs = append(offs, i)
		}
	}
	return offs
}
