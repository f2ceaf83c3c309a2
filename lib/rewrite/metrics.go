// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package rewrite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRewritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qrjoin",
	Subsystem: "rewrite",
	Name:      "payloads_total",
	Help:      "Number of join payloads passed through the rewrite entry point, by outcome.",
}, []string{"outcome"})
