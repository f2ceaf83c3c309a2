// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package slogutil holds small helpers for structured logging with slog.
package slogutil

import (
	"log/slog"
	"os"
)

// Error returns an attribute for the given error under the conventional
// "error" key. A nil error becomes an empty attribute that slog elides.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Expensive wraps a log value that is expensive to compute and should only
// be called if the log line is actually emitted.
func Expensive(fn func() any) expensive {
	return expensive{fn}
}

type expensive struct {
	fn func() any
}

func (e expensive) LogValue() slog.Value {
	return slog.AnyValue(e.fn())
}

// SetLevelFromEnv lowers the default log level to debug when the given
// environment variable is set to a non-empty value.
func SetLevelFromEnv(key string) {
	if os.Getenv(key) == "" {
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}
