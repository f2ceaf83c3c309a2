// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package rewrite

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/qrjoin/qrjoin/lib/extaddr"
	"github.com/qrjoin/qrjoin/lib/joinpayload"
)

// payloadWith builds a join payload with the given entries in one
// connection group, plus an unmodeled trailing field.
func payloadWith(t *testing.T, entries ...[]byte) string {
	t.Helper()

	var raw []byte
	raw = append(raw, 0x92) // [groups, nil]
	raw = append(raw, 0x91) // one group
	raw = append(raw, 0x90|byte(len(entries)))
	for _, e := range entries {
		raw = append(raw, e...)
	}
	raw = append(raw, 0xc0)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func entry(a, b, c, d byte, port int) []byte {
	return []byte{0x92, 0xc4, 0x04, a, b, c, d, 0xcd, byte(port >> 8), byte(port)}
}

func decodeEntry(t *testing.T, payload string, group, idx int) ([]byte, int) {
	t.Helper()
	p, err := joinpayload.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	e := p.Groups[group][idx]
	port, _ := e.Port()
	return e.Addr(), port
}

type stubProvider struct {
	addr string
	err  error
}

func (stubProvider) Name() string { return "stub" }

func (p stubProvider) Lookup(context.Context) (string, error) { return p.addr, p.err }

func TestSubstitute(t *testing.T) {
	p, err := joinpayload.Decode(payloadWith(t, entry(192, 168, 1, 50, 7777)))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Substitute(p, "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Replaced {
		t.Error("expected a replacement")
	}
	if res.Original != "192.168.1.50" {
		t.Errorf("original recorded as %q", res.Original)
	}
	if res.Port != 7777 {
		t.Errorf("port recorded as %d", res.Port)
	}
	if addr := p.Groups[0][0].Addr(); !bytes.Equal(addr, []byte{203, 0, 113, 9}) {
		t.Errorf("address is %v after substitution", addr)
	}
}

func TestSubstituteMixedEntries(t *testing.T) {
	p, err := joinpayload.Decode(payloadWith(t,
		entry(8, 8, 8, 8, 5353),
		entry(10, 1, 2, 3, 7070),
		entry(172, 16, 9, 9, 7071),
	))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Substitute(p, "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Replaced {
		t.Fatal("expected replacements")
	}
	// Diagnostics describe the first private entry, not the first entry.
	if res.Original != "10.1.2.3" || res.Port != 7070 {
		t.Errorf("diagnostics are %q/%d", res.Original, res.Port)
	}

	// The public entry is untouched, both private ones are rewritten.
	if addr := p.Groups[0][0].Addr(); !bytes.Equal(addr, []byte{8, 8, 8, 8}) {
		t.Errorf("public address mutated to %v", addr)
	}
	for _, i := range []int{1, 2} {
		if addr := p.Groups[0][i].Addr(); !bytes.Equal(addr, []byte{203, 0, 113, 9}) {
			t.Errorf("entry %d address is %v", i, addr)
		}
	}
}

func TestSubstituteNoop(t *testing.T) {
	payload := payloadWith(t, entry(8, 8, 8, 8, 5353))
	p, err := joinpayload.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Substitute(p, "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced {
		t.Error("nothing should have been replaced")
	}
	if res.Original != "" || res.Port != -1 {
		t.Errorf("diagnostics are %q/%d for a no-op", res.Original, res.Port)
	}
	if enc := joinpayload.Encode(p); enc != payload {
		t.Errorf("payload changed across a no-op: %q != %q", enc, payload)
	}
}

func TestSubstituteIdempotent(t *testing.T) {
	p, err := joinpayload.Decode(payloadWith(t, entry(192, 168, 1, 50, 7777)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Substitute(p, "203.0.113.9"); err != nil {
		t.Fatal(err)
	}
	first := joinpayload.Encode(p)

	// The replacement address is public, so a second pass finds nothing
	// private and mutates nothing.
	res, err := Substitute(p, "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced {
		t.Error("second pass should be a no-op")
	}
	if second := joinpayload.Encode(p); second != first {
		t.Errorf("payload changed on second pass: %q != %q", second, first)
	}
}

func TestSubstituteInvalidAddress(t *testing.T) {
	p, err := joinpayload.Decode(payloadWith(t, entry(192, 168, 1, 50, 7777)))
	if err != nil {
		t.Fatal(err)
	}

	for _, addr := range []string{"", "1.2.3", "1.2.3.4.5", "1.2.3.999", "a.b.c.d", "1.2.3.-4"} {
		if _, err := Substitute(p, addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Substitute with %q: %v, expected ErrInvalidAddress", addr, err)
		}
	}
	// The failed attempts must not have touched the payload.
	if addr := p.Groups[0][0].Addr(); !bytes.Equal(addr, []byte{192, 168, 1, 50}) {
		t.Errorf("address mutated by failed substitution: %v", addr)
	}
}

func TestRewriteEndToEnd(t *testing.T) {
	input := payloadWith(t, entry(192, 168, 1, 50, 7777))
	rw := New(extaddr.NewResolver(stubProvider{addr: "203.0.113.9"}), Options{})

	output := rw.RewriteJoinPayload(context.Background(), input)
	if output == input {
		t.Fatal("payload was not rewritten")
	}

	addr, port := decodeEntry(t, output, 0, 0)
	if !bytes.Equal(addr, []byte{203, 0, 113, 9}) {
		t.Errorf("rewritten address is %v", addr)
	}
	if port != 7777 {
		t.Errorf("port changed to %d", port)
	}

	// Length preservation: the binary form must not drift.
	in, _ := joinpayload.Decode(input)
	out, _ := joinpayload.Decode(output)
	if len(in.Raw) != len(out.Raw) {
		t.Errorf("payload length drifted from %d to %d", len(in.Raw), len(out.Raw))
	}
}

func TestRewriteFallsBackToOriginal(t *testing.T) {
	good := payloadWith(t, entry(192, 168, 1, 50, 7777))

	cases := []struct {
		name     string
		payload  string
		provider stubProvider
	}{
		{"bad base64", "???", stubProvider{addr: "203.0.113.9"}},
		{"malformed binary", base64.RawURLEncoding.EncodeToString([]byte{0x05}), stubProvider{addr: "203.0.113.9"}},
		{"resolver exhausted", good, stubProvider{err: errors.New("down")}},
		// Passes the resolver's shape check but is not a valid octet set.
		{"unusable resolved address", good, stubProvider{addr: "999.1.1.1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := New(extaddr.NewResolver(tc.provider), Options{DevModeVerbose: true})
			if out := rw.RewriteJoinPayload(context.Background(), tc.payload); out != tc.payload {
				t.Errorf("got %q, expected the original payload back", out)
			}
		})
	}
}

func TestRewriteNoPrivateAddresses(t *testing.T) {
	input := payloadWith(t, entry(8, 8, 8, 8, 5353))
	rw := New(extaddr.NewResolver(stubProvider{addr: "203.0.113.9"}), Options{})
	if out := rw.RewriteJoinPayload(context.Background(), input); out != input {
		t.Errorf("no-op rewrite changed the payload to %q", out)
	}
}

func TestJoinURL(t *testing.T) {
	rw := New(extaddr.NewResolver(stubProvider{addr: "203.0.113.9"}), Options{})
	if got := rw.JoinURL("AbC-_12"); got != "https://qrjoin.app/?join=AbC-_12&p=2" {
		t.Errorf("got %q", got)
	}

	rw = New(nil, Options{JoinHost: "example.com"})
	if got := rw.JoinURL("x"); got != "https://example.com/?join=x&p=2" {
		t.Errorf("got %q", got)
	}
}

func TestQRPNG(t *testing.T) {
	rw := New(nil, Options{})
	if _, err := rw.QRPNG("https://qrjoin.app/?join=x&p=2"); !errors.Is(err, ErrQRDisabled) {
		t.Errorf("got %v, expected ErrQRDisabled", err)
	}

	rw = New(nil, Options{QRImageGeneration: true})
	png, err := rw.QRPNG("https://qrjoin.app/?join=x&p=2")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("output does not look like a PNG: % x", png[:8])
	}
}
