// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	if attr := Error(nil); !attr.Equal(slog.Attr{}) {
		t.Errorf("Error(nil) is %v, expected an empty attribute", attr)
	}
	attr := Error(errors.New("boom"))
	if attr.Key != "error" || attr.Value.String() != "boom" {
		t.Errorf("got %v", attr)
	}
}

func TestExpensiveOnlyComputedWhenEmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	calls := 0
	val := Expensive(func() any {
		calls++
		return "costly"
	})

	logger.Debug("below level", "val", val)
	if calls != 0 {
		t.Errorf("value computed %d times for a suppressed record", calls)
	}

	logger.Info("emitted", "val", val)
	if calls != 1 {
		t.Errorf("value computed %d times for an emitted record, expected 1", calls)
	}
	if out := buf.String(); !strings.Contains(out, "val=costly") {
		t.Errorf("log output %q lacks the resolved value", out)
	}
}
