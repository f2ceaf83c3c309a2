// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package portinfer recovers a plausible service port from raw join payload
// bytes when the schema's port field is absent or unreliable. The result is
// a best-effort guess for diagnostics and port forwarding hints, not an
// authoritative protocol value; false positives are possible.
package portinfer

import (
	"encoding/binary"
	"log/slog"

	"github.com/qrjoin/qrjoin/lib/privaddr"
)

// Band is an inclusive range of preferred service ports for the brute-force
// strategy.
type Band struct {
	Lo, Hi int
}

// DefaultBands are the port ranges observed in real deployments. They are
// empirical, not derived from any protocol, which is why they can be
// overridden via InferWithBands.
var DefaultBands = []Band{
	{7000, 8000},
	{27000, 28000},
	{5000, 6000},
}

// Infer tries to recover a service port from raw, using three strategies in
// order: proximity to a private-address byte pattern, known integer format
// markers, and a brute-force scan over the default port bands. The second
// return is false when no strategy found anything; callers surfacing the
// result numerically should print -1 for that case, never 0.
func Infer(raw []byte) (int, bool) {
	return InferWithBands(raw, DefaultBands)
}

// InferWithBands is Infer with caller-supplied bands for the brute-force
// strategy.
func InferWithBands(raw []byte, bands []Band) (int, bool) {
	if port, ok := proximityPort(raw); ok {
		return port, true
	}
	slog.Debug("Port inference: proximity strategy found nothing", "bytes", len(raw))

	if port, ok := markerPort(raw); ok {
		return port, true
	}
	slog.Debug("Port inference: marker strategy found nothing", "bytes", len(raw))

	if port, ok := bandPort(raw, bands); ok {
		return port, true
	}
	slog.Debug("Port inference: band scan found nothing", "bytes", len(raw))

	return 0, false
}

// plausible reports whether v lies in the open interval (1023, 65536), the
// range we accept as a non-privileged port.
func plausible(v int) bool {
	return v > 1023 && v < 65536
}

// proximityPort looks for 16-bit values shortly after a private-address
// byte pattern, on the theory that address and port are adjacent fields.
// Offsets 4 through 15 past each pattern are checked, big-endian before
// little-endian at each offset.
func proximityPort(raw []byte) (int, bool) {
	for _, m := range privaddr.ScanOffsets(raw) {
		for d := 4; d <= 15; d++ {
			off := m + d
			if off+2 > len(raw) {
				break
			}
			if v := int(binary.BigEndian.Uint16(raw[off:])); plausible(v) {
				return v, true
			}
			if v := int(binary.LittleEndian.Uint16(raw[off:])); plausible(v) {
				return v, true
			}
		}
	}
	return 0, false
}

// markerPort looks for single-byte format markers that conventionally
// precede 8- and 16-bit integers and interprets the bytes that follow.
func markerPort(raw []byte) (int, bool) {
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case 0xcd: // uint16 follows
			if i+3 <= len(raw) {
				if v := int(binary.BigEndian.Uint16(raw[i+1:])); plausible(v) {
					return v, true
				}
			}
		case 0xd1: // int16 follows; negative values can never be ports
			if i+3 <= len(raw) {
				if v := int(int16(binary.BigEndian.Uint16(raw[i+1:]))); plausible(v) {
					return v, true
				}
			}
		case 0xcc: // uint8 follows, can never exceed 1023 but kept for shape
			if i+2 <= len(raw) {
				if v := int(raw[i+1]); plausible(v) {
					return v, true
				}
			}
		}
	}
	return 0, false
}

// bandPort slides a two-byte window over the whole buffer and accepts the
// first value, big-endian before little-endian, that lands in one of the
// preferred bands.
func bandPort(raw []byte, bands []Band) (int, bool) {
	inBand := func(v int) bool {
		for _, b := range bands {
			if v >= b.Lo && v <= b.Hi {
				return true
			}
		}
		return false
	}

	for i := 0; i+2 <= len(raw); i++ {
		if v := int(binary.BigEndian.Uint16(raw[i:])); inBand(v) {
			return v, true
		}
		if v := int(binary.LittleEndian.Uint16(raw[i:])); inBand(v) {
			return v, true
		}
	}
	return 0, false
}
