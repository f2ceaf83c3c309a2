// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/qrjoin/qrjoin/lib/extaddr"
	"github.com/qrjoin/qrjoin/lib/rewrite"
)

const maxPayloadSize = 1 << 20 // 1 MiB

type serveCmd struct {
	Listen string `help:"HTTP listen address" default:":8080" env:"QRJOIN_LISTEN"`
}

func (c *serveCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver := cli.resolver()

	spv := suture.NewSimple("qrjoin")
	spv.Add(extaddr.NewService(resolver))
	spv.Add(&httpService{
		listen: c.Listen,
		rw:     rewrite.New(resolver, rewrite.Options{
			QRImageGeneration: cli.EnableQR,
			DevModeVerbose:    cli.Verbose,
			JoinHost:          cli.JoinHost,
		}),
	})

	slog.Info("Serving", "listen", c.Listen)
	err := spv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// httpService runs the rewrite HTTP endpoint under the supervisor.
type httpService struct {
	listen string
	rw     *rewrite.Rewriter
}

func (s *httpService) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rewrite", s.handleRewrite)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:        s.listen,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *httpService) String() string {
	return "httpService@" + s.listen
}

// handleRewrite takes the payload as the request body and responds with the
// rewritten payload, or the original when rewriting is impossible. By
// contract this endpoint does not fail on bad payloads.
func (s *httpService) handleRewrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	payload := strings.TrimSpace(string(body))
	if payload == "" {
		http.Error(w, "empty payload", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.rw.RewriteJoinPayload(r.Context(), payload)))
}
