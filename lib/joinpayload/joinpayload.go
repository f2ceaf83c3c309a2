// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package joinpayload decodes and re-encodes join payloads: URL-safe,
// unpadded base64 strings wrapping a tagged binary object whose first
// element is a list of connection groups. Fields we do not model are
// preserved verbatim across a decode/encode cycle.
package joinpayload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/qrjoin/qrjoin/lib/binobj"
)

var (
	ErrInvalidPadding  = errors.New("payload is not valid base64")
	ErrMalformedBinary = errors.New("payload binary has unexpected structure")
)

// JoinPayload is one decoded join payload. Groups gives structured access
// to the connection entries inside the underlying object tree; entry
// address bytes may be mutated in place, which is reflected in the next
// Encode. Everything else in the tree is read only.
type JoinPayload struct {
	root   *binobj.Value
	Groups [][]ConnEntry
	Raw    []byte // decoded binary, for diagnostic scanning
}

// ConnEntry is a view over one connection entry list inside the payload.
type ConnEntry struct {
	val *binobj.Value
}

// Addr returns the entry's address buffer, or nil if the entry does not
// carry a byte buffer in the address position. The returned slice aliases
// the payload; writing to it mutates the payload.
func (e ConnEntry) Addr() []byte {
	if len(e.val.List) < 1 || e.val.List[0].Kind != binobj.KindBin {
		return nil
	}
	return e.val.List[0].Bin
}

// Port returns the entry's port field, if present and integral.
func (e ConnEntry) Port() (int, bool) {
	if len(e.val.List) < 2 || e.val.List[1].Kind != binobj.KindInt {
		return 0, false
	}
	return int(e.val.List[1].Int), true
}

// DecodeRaw returns the binary bytes of a payload string without any
// structural parsing. Diagnostic scanning wants the bytes even when the
// object structure is not what we expect.
func DecodeRaw(payload string) ([]byte, error) {
	return decodeBase64(payload)
}

// Decode parses a URL-safe, unpadded base64 payload string. It fails with
// ErrInvalidPadding when the string is not decodable as base64 after
// normalization, and with ErrMalformedBinary when the decoded bytes do not
// have the expected shape: a list whose first element is a list of lists.
func Decode(payload string) (*JoinPayload, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, err
	}

	root, err := binobj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBinary, err)
	}
	if root.Kind != binobj.KindList || len(root.List) == 0 {
		return nil, fmt.Errorf("%w: top level is not a non-empty list", ErrMalformedBinary)
	}
	groupsVal := root.List[0]
	if groupsVal.Kind != binobj.KindList {
		return nil, fmt.Errorf("%w: element 0 is %v, not a list", ErrMalformedBinary, groupsVal.Kind)
	}

	p := &JoinPayload{root: root, Raw: raw}
	for i, groupVal := range groupsVal.List {
		if groupVal.Kind != binobj.KindList {
			return nil, fmt.Errorf("%w: group %d is %v, not a list", ErrMalformedBinary, i, groupVal.Kind)
		}
		group := make([]ConnEntry, 0, len(groupVal.List))
		for j, entryVal := range groupVal.List {
			if entryVal.Kind != binobj.KindList {
				return nil, fmt.Errorf("%w: entry %d/%d is %v, not a list", ErrMalformedBinary, i, j, entryVal.Kind)
			}
			group = append(group, ConnEntry{val: entryVal})
		}
		p.Groups = append(p.Groups, group)
	}
	return p, nil
}

// Encode serializes the payload back to a URL-safe, unpadded base64 string.
// The binary encoding is canonical, so the string may differ from the one
// originally decoded even when nothing was mutated.
func Encode(p *JoinPayload) string {
	return encodeBase64(binobj.Encode(p.root))
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPadding, err)
	}
	return raw, nil
}

func encodeBase64(b []byte) string {
	s := base64.StdEncoding.EncodeToString(b)
	s = strings.ReplaceAll(s, "+", "-")
	s = strings.ReplaceAll(s, "/", "_")
	return strings.TrimRight(s, "=")
}
