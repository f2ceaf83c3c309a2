// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package binobj implements a minimal reader and writer for the tagged
// binary object format used by join payloads. Only the value kinds needed
// to reach nested byte buffers and integers are modeled; everything else is
// carried through as an opaque span that re-encodes to its original bytes.
package binobj

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type Kind int

const (
	KindList Kind = iota
	KindBin
	KindInt
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindBin:
		return "bin"
	case KindInt:
		return "int"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value is one node in the decoded object tree. Exactly one of List, Bin,
// Int or Raw is meaningful, selected by Kind. Bin bytes may be mutated in
// place by the caller; everything else is read only.
type Value struct {
	Kind   Kind
	List   []*Value
	Bin    []byte
	Str    bool // Bin came from a str-family tag and re-encodes as one
	Int    int64
	IntTag byte   // original non-fixint tag; re-encoding keeps its width
	Raw    []byte // original encoding, opaque values only
}

var ErrUnexpectedEnd = errors.New("unexpected end of data")

// Parse decodes a single value from buf. The whole buffer must be consumed;
// trailing bytes are an error.
func Parse(buf []byte) (*Value, error) {
	r := &reader{buf: buf}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}
	if r.pos != len(buf) {
		return nil, fmt.Errorf("%d trailing bytes after value", len(buf)-r.pos)
	}
	return v, nil
}

// Encode serializes the value tree. Opaque values reproduce their original
// bytes exactly; lists and buffers use the smallest encoding within their
// original tag family. Parsed integers keep their original tag while the
// value still fits it, so a non-minimal host encoding round-trips at its
// original length; synthesized integers encode minimally.
func Encode(v *Value) []byte {
	return appendValue(nil, v)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.pos < n {
		return nil, ErrUnexpectedEnd
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) takeByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) beUint(n int) (uint64, error) {
	b, err := r.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func (r *reader) readValue() (*Value, error) {
	start := r.pos
	tag, err := r.takeByte()
	if err != nil {
		return nil, err
	}

	switch {
	case tag <= 0x7f: // positive fixint
		return &Value{Kind: KindInt, Int: int64(tag)}, nil
	case tag >= 0xe0: // negative fixint
		return &Value{Kind: KindInt, Int: int64(int8(tag))}, nil
	case tag >= 0x90 && tag <= 0x9f: // fixarray
		return r.readList(int(tag & 0x0f))
	case tag >= 0xa0 && tag <= 0xbf: // fixstr
		return r.readBin(int(tag&0x1f), true)
	case tag >= 0x80 && tag <= 0x8f: // fixmap, kept opaque
		return r.opaqueFrom(start)
	}

	switch tag {
	case 0xc0, 0xc2, 0xc3: // nil, false, true
		return &Value{Kind: KindOpaque, Raw: r.buf[start:r.pos]}, nil
	case 0xc4, 0xc5, 0xc6: // bin8/16/32
		n, err := r.beUint(1 << (tag - 0xc4))
		if err != nil {
			return nil, err
		}
		return r.readBin(int(n), false)
	case 0xd9, 0xda, 0xdb: // str8/16/32
		n, err := r.beUint(1 << (tag - 0xd9))
		if err != nil {
			return nil, err
		}
		return r.readBin(int(n), true)
	case 0xcc, 0xcd, 0xce, 0xcf: // uint8/16/32/64
		n, err := r.beUint(1 << (tag - 0xcc))
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindInt, Int: int64(n), IntTag: tag}, nil
	case 0xd0, 0xd1, 0xd2, 0xd3: // int8/16/32/64
		width := 1 << (tag - 0xd0)
		n, err := r.beUint(width)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindInt, Int: signExtend(n, width), IntTag: tag}, nil
	case 0xdc, 0xdd: // array16/32
		n, err := r.beUint(2 << (tag - 0xdc))
		if err != nil {
			return nil, err
		}
		return r.readList(int(n))
	case 0xca, 0xcb, // float32/64, kept opaque
		0xde, 0xdf, // map16/32, kept opaque
		0xc7, 0xc8, 0xc9, // ext8/16/32, kept opaque
		0xd4, 0xd5, 0xd6, 0xd7, 0xd8: // fixext, kept opaque
		return r.opaqueFrom(start)
	}

	return nil, fmt.Errorf("unsupported tag 0x%02x at offset %d", tag, start)
}

func (r *reader) readList(n int) (*Value, error) {
	if n > len(r.buf)-r.pos { // each element needs at least one byte
		return nil, ErrUnexpectedEnd
	}
	list := make([]*Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.readValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return &Value{Kind: KindList, List: list}, nil
}

func (r *reader) readBin(n int, str bool) (*Value, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return &Value{Kind: KindBin, Bin: b, Str: str}, nil
}

// opaqueFrom re-scans the value starting at start, skipping over it
// structurally, and returns its exact byte span.
func (r *reader) opaqueFrom(start int) (*Value, error) {
	r.pos = start
	if err := r.skip(); err != nil {
		return nil, err
	}
	return &Value{Kind: KindOpaque, Raw: r.buf[start:r.pos]}, nil
}

// skip advances past one value of any supported kind without building a
// tree for it.
func (r *reader) skip() error {
	tag, err := r.takeByte()
	if err != nil {
		return err
	}

	skipN := func(n int) error {
		_, err := r.take(n)
		return err
	}
	skipValues := func(n int) error {
		for i := 0; i < n; i++ {
			if err := r.skip(); err != nil {
				return err
			}
		}
		return nil
	}
	lenThenSkip := func(width, extra int) error {
		n, err := r.beUint(width)
		if err != nil {
			return err
		}
		return skipN(int(n) + extra)
	}

	switch {
	case tag <= 0x7f || tag >= 0xe0:
		return nil
	case tag >= 0x80 && tag <= 0x8f:
		return skipValues(2 * int(tag&0x0f))
	case tag >= 0x90 && tag <= 0x9f:
		return skipValues(int(tag & 0x0f))
	case tag >= 0xa0 && tag <= 0xbf:
		return skipN(int(tag & 0x1f))
	}

	switch tag {
	case 0xc0, 0xc2, 0xc3:
		return nil
	case 0xc4, 0xc5, 0xc6:
		return lenThenSkip(1<<(tag-0xc4), 0)
	case 0xd9, 0xda, 0xdb:
		return lenThenSkip(1<<(tag-0xd9), 0)
	case 0xc7, 0xc8, 0xc9: // ext carries a type byte after the length
		return lenThenSkip(1<<(tag-0xc7), 1)
	case 0xcc, 0xd0:
		return skipN(1)
	case 0xcd, 0xd1:
		return skipN(2)
	case 0xce, 0xd2, 0xca:
		return skipN(4)
	case 0xcf, 0xd3, 0xcb:
		return skipN(8)
	case 0xd4, 0xd5, 0xd6, 0xd7, 0xd8:
		return skipN(1 + 1<<(tag-0xd4))
	case 0xdc, 0xdd:
		n, err := r.beUint(2 << (tag - 0xdc))
		if err != nil {
			return err
		}
		return skipValues(int(n))
	case 0xde, 0xdf:
		n, err := r.beUint(2 << (tag - 0xde))
		if err != nil {
			return err
		}
		return skipValues(2 * int(n))
	}

	return fmt.Errorf("unsupported tag 0x%02x at offset %d", tag, r.pos-1)
}

func signExtend(v uint64, width int) int64 {
	shift := 64 - 8*width
	return int64(v<<shift) >> shift
}

func appendValue(dst []byte, v *Value) []byte {
	switch v.Kind {
	case KindOpaque:
		return append(dst, v.Raw...)

	case KindInt:
		return appendInt(dst, v.Int, v.IntTag)

	case KindBin:
		n := len(v.Bin)
		switch {
		case v.Str && n < 32:
			dst = append(dst, 0xa0|byte(n))
		case v.Str && n < 1<<8:
			dst = append(dst, 0xd9, byte(n))
		case v.Str && n < 1<<16:
			dst = append(dst, 0xda)
			dst = binary.BigEndian.AppendUint16(dst, uint16(n))
		case v.Str:
			dst = append(dst, 0xdb)
			dst = binary.BigEndian.AppendUint32(dst, uint32(n))
		case n < 1<<8:
			dst = append(dst, 0xc4, byte(n))
		case n < 1<<16:
			dst = append(dst, 0xc5)
			dst = binary.BigEndian.AppendUint16(dst, uint16(n))
		default:
			dst = append(dst, 0xc6)
			dst = binary.BigEndian.AppendUint32(dst, uint32(n))
		}
		return append(dst, v.Bin...)

	case KindList:
		n := len(v.List)
		switch {
		case n < 16:
			dst = append(dst, 0x90|byte(n))
		case n < 1<<16:
			dst = append(dst, 0xdc)
			dst = binary.BigEndian.AppendUint16(dst, uint16(n))
		default:
			dst = append(dst, 0xdd)
			dst = binary.BigEndian.AppendUint32(dst, uint32(n))
		}
		for _, e := range v.List {
			dst = appendValue(dst, e)
		}
		return dst
	}

	return dst
}

func appendInt(dst []byte, i int64, tag byte) []byte {
	if intFits(i, tag) {
		switch tag {
		case 0xcc, 0xd0:
			return append(dst, tag, byte(i))
		case 0xcd, 0xd1:
			dst = append(dst, tag)
			return binary.BigEndian.AppendUint16(dst, uint16(i))
		case 0xce, 0xd2:
			dst = append(dst, tag)
			return binary.BigEndian.AppendUint32(dst, uint32(i))
		case 0xcf, 0xd3:
			dst = append(dst, tag)
			return binary.BigEndian.AppendUint64(dst, uint64(i))
		}
	}

	switch {
	case i >= 0 && i <= 0x7f:
		return append(dst, byte(i))
	case i >= 0 && i < 1<<8:
		return append(dst, 0xcc, byte(i))
	case i >= 0 && i < 1<<16:
		dst = append(dst, 0xcd)
		return binary.BigEndian.AppendUint16(dst, uint16(i))
	case i >= 0 && i < 1<<32:
		dst = append(dst, 0xce)
		return binary.BigEndian.AppendUint32(dst, uint32(i))
	case i >= 0:
		dst = append(dst, 0xcf)
		return binary.BigEndian.AppendUint64(dst, uint64(i))
	case i >= -32:
		return append(dst, byte(i))
	case i >= -1<<7:
		return append(dst, 0xd0, byte(i))
	case i >= -1<<15:
		dst = append(dst, 0xd1)
		return binary.BigEndian.AppendUint16(dst, uint16(i))
	case i >= -1<<31:
		dst = append(dst, 0xd2)
		return binary.BigEndian.AppendUint32(dst, uint32(i))
	default:
		dst = append(dst, 0xd3)
		return binary.BigEndian.AppendUint64(dst, uint64(i))
	}
}

// intFits reports whether i is representable under the given integer tag.
// The 64-bit tags always fit; int64 round-trips their bit pattern either
// way.
func intFits(i int64, tag byte) bool {
	switch tag {
	case 0xcc, 0xcd, 0xce:
		width := uint(8 << (tag - 0xcc))
		return i >= 0 && i>>width == 0
	case 0xd0, 0xd1, 0xd2:
		bits := uint(8<<(tag-0xd0)) - 1
		return i >= -1<<bits && i < 1<<bits
	case 0xcf, 0xd3:
		return true
	}
	return false
}
