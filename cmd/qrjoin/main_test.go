// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qrjoin/qrjoin/lib/extaddr"
	"github.com/qrjoin/qrjoin/lib/portinfer"
	"github.com/qrjoin/qrjoin/lib/rewrite"
)

func TestParseBands(t *testing.T) {
	bands, err := parseBands([]string{"7000-8000", " 5000 - 6000 "})
	if err != nil {
		t.Fatal(err)
	}
	want := []portinfer.Band{{Lo: 7000, Hi: 8000}, {Lo: 5000, Hi: 6000}}
	for i, b := range bands {
		if b != want[i] {
			t.Errorf("band %d is %v, expected %v", i, b, want[i])
		}
	}

	for _, bad := range []string{"7000", "a-b", "8000-7000", ""} {
		if _, err := parseBands([]string{bad}); err == nil {
			t.Errorf("parseBands(%q) accepted", bad)
		}
	}
}

func TestProviderList(t *testing.T) {
	// A custom STUN server takes effect even without --providers.
	cli := &CLI{StunServer: "stun.example.com:3478"}
	ps := cli.providerList()
	if len(ps) != len(extaddr.DefaultHTTPProviders())+1 {
		t.Fatalf("got %d providers", len(ps))
	}
	stun, ok := ps[len(ps)-1].(*extaddr.STUNProvider)
	if !ok || stun.Server != "stun.example.com:3478" {
		t.Errorf("last provider is %#v, expected the configured STUN server", ps[len(ps)-1])
	}

	// A custom provider list replaces the HTTP defaults but keeps STUN last.
	cli = &CLI{Providers: []string{"https://ip.example.com"}, StunServer: extaddr.DefaultStunServer}
	ps = cli.providerList()
	if len(ps) != 2 {
		t.Fatalf("got %d providers, expected 2", len(ps))
	}
	if h, ok := ps[0].(*extaddr.HTTPProvider); !ok || h.URL != "https://ip.example.com" {
		t.Errorf("first provider is %#v", ps[0])
	}
	if s, ok := ps[1].(*extaddr.STUNProvider); !ok || s.Server != extaddr.DefaultStunServer {
		t.Errorf("last provider is %#v", ps[1])
	}

	// An empty STUN server drops the fallback entirely.
	cli = &CLI{Providers: []string{"https://ip.example.com"}}
	if ps = cli.providerList(); len(ps) != 1 {
		t.Errorf("got %d providers, expected the HTTP provider alone", len(ps))
	}
}

type stubProvider struct{ addr string }

func (stubProvider) Name() string { return "stub" }

func (p stubProvider) Lookup(context.Context) (string, error) { return p.addr, nil }

func TestHandleRewrite(t *testing.T) {
	// One group, one entry {192.168.1.50, 7777}, one unmodeled field.
	payload := base64.RawURLEncoding.EncodeToString([]byte{
		0x92, 0x91, 0x91, 0x92,
		0xc4, 0x04, 192, 168, 1, 50,
		0xcd, 0x1e, 0x61,
		0xc0,
	})

	svc := &httpService{
		rw: rewrite.New(extaddr.NewResolver(stubProvider{addr: "203.0.113.9"}), rewrite.Options{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/rewrite", strings.NewReader(payload+"\n"))
	rec := httptest.NewRecorder()
	svc.handleRewrite(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := rec.Body.String()
	if out == payload {
		t.Error("payload came back unchanged")
	}

	raw, err := base64.RawURLEncoding.DecodeString(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), string([]byte{203, 0, 113, 9})) {
		t.Errorf("rewritten payload does not contain the external address: % x", raw)
	}
}

func TestHandleRewriteEmptyBody(t *testing.T) {
	svc := &httpService{
		rw: rewrite.New(extaddr.NewResolver(stubProvider{addr: "203.0.113.9"}), rewrite.Options{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/rewrite", strings.NewReader("  \n"))
	rec := httptest.NewRecorder()
	svc.handleRewrite(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, expected 400", rec.Code)
	}
}
