// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package extaddr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ccding/go-stun/stun"
)

const maxResponseSize = 256 // an IPv4 dotted quad plus generous slack

// DefaultStunServer is the STUN server used when the caller does not name
// one.
const DefaultStunServer = "stun.l.google.com:19302"

// DefaultHTTPProviders is the built-in ordered list of plain-text HTTP
// lookup services.
func DefaultHTTPProviders() []Provider {
	return []Provider{
		&HTTPProvider{URL: "https://api.ipify.org"},
		&HTTPProvider{URL: "https://icanhazip.com"},
		&HTTPProvider{URL: "https://ifconfig.me/ip"},
		&HTTPProvider{URL: "https://checkip.amazonaws.com"},
	}
}

// DefaultProviders is the built-in ordered provider list: plain-text HTTP
// lookup services, with STUN as the final fallback.
func DefaultProviders() []Provider {
	return append(DefaultHTTPProviders(), &STUNProvider{Server: DefaultStunServer})
}

// HTTPProvider queries a plain-text HTTP endpoint that responds with an
// IPv4 dotted quad in the body.
type HTTPProvider struct {
	URL    string
	Client *http.Client // nil means http.DefaultClient
}

func (p *HTTPProvider) Name() string { return p.URL }

func (p *HTTPProvider) Lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return "", err
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// STUNProvider discovers the external address via a STUN server. The
// discovery library blocks without context support, so the call runs in a
// goroutine that is abandoned when the context expires.
type STUNProvider struct {
	Server string
}

func (p *STUNProvider) Name() string { return "stun://" + p.Server }

func (p *STUNProvider) Lookup(ctx context.Context) (string, error) {
	type result struct {
		addr string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		client := stun.NewClient()
		client.SetServerAddr(p.Server)
		_, host, err := client.Discover()
		if err != nil {
			done <- result{err: err}
			return
		}
		if host == nil {
			done <- result{err: fmt.Errorf("%s: no address", p.Server)}
			return
		}
		done <- result{addr: host.IP()}
	}()

	select {
	case res := <-done:
		return res.addr, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
