// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package rewrite substitutes private addresses in join payloads with the
// host's external address. The public entry point never fails: whatever
// goes wrong internally, the caller gets a payload string back that keeps
// the join flow working, falling back to the original input.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/qrjoin/qrjoin/internal/slogutil"
	"github.com/qrjoin/qrjoin/lib/extaddr"
	"github.com/qrjoin/qrjoin/lib/joinpayload"
	"github.com/qrjoin/qrjoin/lib/privaddr"
)

// DefaultJoinHost is the host embedded in generated join URLs.
const DefaultJoinHost = "qrjoin.app"

var ErrInvalidAddress = errors.New("replacement address is not four dotted octets")

// Options are read-only inputs supplied by the caller; the rewriter owns no
// configuration state of its own.
type Options struct {
	QRImageGeneration bool   // gate for QRPNG output
	DevModeVerbose    bool   // report rewrite diagnostics at info level
	JoinHost          string // empty means DefaultJoinHost
}

// Result describes one substitution pass.
type Result struct {
	Replaced bool
	Original string // first replaced address, for diagnostics
	Port     int    // port of the first replaced entry, -1 if unknown
}

// Substitute overwrites, in place, the address bytes of every connection
// entry classified as private with the given replacement address. The first
// private entry's original address and port are recorded for diagnostics.
// A payload without private addresses is left untouched and reported as
// Replaced == false with a nil error; that is success, not failure. Buffer
// lengths never change, so the re-encoded payload cannot drift in size.
func Substitute(p *joinpayload.JoinPayload, newAddr string) (Result, error) {
	octets, err := parseOctets(newAddr)
	if err != nil {
		return Result{Port: -1}, err
	}

	res := Result{Port: -1}
	for _, group := range p.Groups {
		for _, entry := range group {
			addr := entry.Addr()
			if !privaddr.IsPrivate(addr) {
				continue
			}
			if !res.Replaced {
				res.Original = fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3])
				if port, ok := entry.Port(); ok {
					res.Port = port
				}
			}
			copy(addr, octets)
			res.Replaced = true
		}
	}
	return res, nil
}

func parseOctets(addr string) ([]byte, error) {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	octets := make([]byte, 4)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		octets[i] = byte(n)
	}
	return octets, nil
}

// Rewriter ties the substitution engine to an external address resolver.
type Rewriter struct {
	resolver *extaddr.Resolver
	opts     Options
}

func New(resolver *extaddr.Resolver, opts Options) *Rewriter {
	return &Rewriter{resolver: resolver, opts: opts}
}

// RewriteJoinPayload is the sole host-facing operation. It decodes the
// payload, resolves the external address, substitutes private addresses and
// re-encodes. On any internal failure, or when there is nothing to replace,
// the original payload string is returned unchanged so the host keeps its
// normal behavior.
func (rw *Rewriter) RewriteJoinPayload(ctx context.Context, payload string) string {
	out, outcome, err := rw.rewrite(ctx, payload)
	metricRewritesTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		slog.Log(ctx, rw.diagLevel(), "Join payload left unchanged",
			"outcome", outcome, "payloadLen", len(payload), slogutil.Error(err),
			"payload", slogutil.Expensive(func() any { return preview(payload) }))
		return payload
	}
	return out
}

// preview truncates a payload for failure diagnostics. Only computed when
// the log line is actually emitted.
func preview(payload string) string {
	const max = 48
	if len(payload) > max {
		return payload[:max] + "..."
	}
	return payload
}

func (rw *Rewriter) rewrite(ctx context.Context, payload string) (string, string, error) {
	p, err := joinpayload.Decode(payload)
	if err != nil {
		return "", "decode_failed", err
	}

	extAddr, err := rw.resolver.Resolve(ctx)
	if err != nil {
		return "", "resolve_failed", err
	}

	res, err := Substitute(p, extAddr)
	if err != nil {
		return "", "substitute_failed", err
	}
	if !res.Replaced {
		slog.Log(ctx, rw.diagLevel(), "Join payload has no private addresses", "payloadLen", len(payload))
		return payload, "unchanged", nil
	}

	slog.Log(ctx, rw.diagLevel(), "Rewrote join payload address",
		"from", res.Original, "to", extAddr, "port", res.Port)
	return joinpayload.Encode(p), "rewritten", nil
}

func (rw *Rewriter) diagLevel() slog.Level {
	if rw.opts.DevModeVerbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// JoinURL builds the URL handed to the QR rendering sink. The payload is
// URL-safe base64 and needs no escaping.
func (rw *Rewriter) JoinURL(payload string) string {
	host := rw.opts.JoinHost
	if host == "" {
		host = DefaultJoinHost
	}
	return "https://" + host + "/?join=" + payload + "&p=2"
}
