// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command qrjoin rewrites binary join payloads so that an embedded private
// LAN address points at the host's external address instead, and offers the
// surrounding plumbing: external address resolution, port inference, join
// URL and QR code generation, and an HTTP rewrite service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/qrjoin/qrjoin/internal/slogutil"
	"github.com/qrjoin/qrjoin/lib/extaddr"
	"github.com/qrjoin/qrjoin/lib/joinpayload"
	"github.com/qrjoin/qrjoin/lib/portinfer"
	"github.com/qrjoin/qrjoin/lib/rewrite"
)

type CLI struct {
	Verbose       bool          `help:"Verbose diagnostic output" short:"v" env:"QRJOIN_VERBOSE"`
	Providers     []string      `help:"Ordered external address provider URLs, overriding the built-in list" env:"QRJOIN_PROVIDERS"`
	StunServer    string        `help:"STUN server used as the final lookup fallback" default:"stun.l.google.com:19302" env:"QRJOIN_STUN_SERVER"`
	CacheTTL      time.Duration `help:"External address cache lifetime" default:"5m" env:"QRJOIN_CACHE_TTL"`
	LookupTimeout time.Duration `help:"Per-provider lookup timeout" default:"5s" env:"QRJOIN_LOOKUP_TIMEOUT"`
	JoinHost      string        `help:"Host embedded in generated join URLs" default:"qrjoin.app" env:"QRJOIN_JOIN_HOST"`
	EnableQR      bool          `help:"Enable QR image generation" env:"QRJOIN_ENABLE_QR"`

	Rewrite rewriteCmd `cmd:"" help:"Rewrite a join payload to use the external address"`
	Resolve resolveCmd `cmd:"" help:"Print the resolved external address"`
	Port    portCmd    `cmd:"" help:"Print the inferred service port of a payload (-1 when none)"`
	URL     urlCmd     `cmd:"" name:"url" help:"Print the join URL for a payload"`
	QR      qrCmd      `cmd:"" help:"Write the join QR code PNG for a payload"`
	Serve   serveCmd   `cmd:"" help:"Run the HTTP rewrite service"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("qrjoin"),
		kong.Description("Join payload address rewriter"),
	)

	if cli.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	} else {
		slogutil.SetLevelFromEnv("QRJOIN_DEBUG")
	}

	kctx.FatalIfErrorf(kctx.Run(&cli))
}

// providerList builds the ordered lookup chain from the flags. A custom
// --providers list replaces the built-in HTTP services; the configured STUN
// server is appended as the final fallback either way.
func (cli *CLI) providerList() []extaddr.Provider {
	var providers []extaddr.Provider
	for _, u := range cli.Providers {
		providers = append(providers, &extaddr.HTTPProvider{URL: u})
	}
	if len(providers) == 0 {
		providers = extaddr.DefaultHTTPProviders()
	}
	if cli.StunServer != "" {
		providers = append(providers, &extaddr.STUNProvider{Server: cli.StunServer})
	}
	return providers
}

func (cli *CLI) resolver() *extaddr.Resolver {
	r := extaddr.NewResolver(cli.providerList()...)
	r.SetTTL(cli.CacheTTL)
	r.SetTimeout(cli.LookupTimeout)
	return r
}

func (cli *CLI) rewriter() *rewrite.Rewriter {
	return rewrite.New(cli.resolver(), rewrite.Options{
		QRImageGeneration: cli.EnableQR,
		DevModeVerbose:    cli.Verbose,
		JoinHost:          cli.JoinHost,
	})
}

// readPayload takes the payload from the argument, or from stdin when the
// argument is empty or "-".
func readPayload(arg string) (string, error) {
	if arg != "" && arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
	if err != nil {
		return "", err
	}
	payload := strings.TrimSpace(string(b))
	if payload == "" {
		return "", fmt.Errorf("no payload on stdin")
	}
	return payload, nil
}

func parseBands(specs []string) ([]portinfer.Band, error) {
	var bands []portinfer.Band
	for _, s := range specs {
		lo, hi, ok := strings.Cut(s, "-")
		if !ok {
			return nil, fmt.Errorf("band %q is not in lo-hi form", s)
		}
		l, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", s, err)
		}
		h, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", s, err)
		}
		if l > h {
			return nil, fmt.Errorf("band %q is inverted", s)
		}
		bands = append(bands, portinfer.Band{Lo: l, Hi: h})
	}
	return bands, nil
}

type rewriteCmd struct {
	Payload string `arg:"" optional:"" help:"Join payload (base64); reads stdin when omitted"`
	QROut   string `help:"Also write the join QR code PNG to this file" type:"path"`
}

func (c *rewriteCmd) Run(cli *CLI) error {
	payload, err := readPayload(c.Payload)
	if err != nil {
		return err
	}

	rw := cli.rewriter()
	out := rw.RewriteJoinPayload(context.Background(), payload)
	fmt.Println(out)

	if c.QROut != "" {
		png, err := rw.QRPNG(rw.JoinURL(out))
		if err != nil {
			return err
		}
		return os.WriteFile(c.QROut, png, 0o644)
	}
	return nil
}

type resolveCmd struct{}

func (resolveCmd) Run(cli *CLI) error {
	addr, err := cli.resolver().Resolve(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

type portCmd struct {
	Payload string   `arg:"" optional:"" help:"Join payload (base64); reads stdin when omitted"`
	Band    []string `help:"Preferred port band as lo-hi, repeatable; overrides the defaults"`
}

func (c *portCmd) Run(*CLI) error {
	payload, err := readPayload(c.Payload)
	if err != nil {
		return err
	}
	raw, err := joinpayload.DecodeRaw(payload)
	if err != nil {
		return err
	}

	bands := portinfer.DefaultBands
	if len(c.Band) > 0 {
		if bands, err = parseBands(c.Band); err != nil {
			return err
		}
	}

	// -1 means no port could be inferred; it is never a valid port.
	port, ok := portinfer.InferWithBands(raw, bands)
	if !ok {
		port = -1
	}
	fmt.Println(port)
	return nil
}

type urlCmd struct {
	Payload string `arg:"" optional:"" help:"Join payload (base64); reads stdin when omitted"`
}

func (c *urlCmd) Run(cli *CLI) error {
	payload, err := readPayload(c.Payload)
	if err != nil {
		return err
	}
	fmt.Println(cli.rewriter().JoinURL(payload))
	return nil
}

type qrCmd struct {
	Out     string `arg:"" help:"Output PNG file" type:"path"`
	Payload string `arg:"" optional:"" help:"Join payload (base64); reads stdin when omitted"`
}

func (c *qrCmd) Run(cli *CLI) error {
	payload, err := readPayload(c.Payload)
	if err != nil {
		return err
	}
	cli.EnableQR = true // an explicit qr command overrides the gate
	rw := cli.rewriter()
	png, err := rw.QRPNG(rw.JoinURL(payload))
	if err != nil {
		return err
	}
	return os.WriteFile(c.Out, png, 0o644)
}
