// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package extaddr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qrjoin",
	Subsystem: "extaddr",
	Name:      "lookups_total",
	Help:      "Number of external address provider lookups, by provider and outcome.",
}, []string{"provider", "outcome"})

var metricCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qrjoin",
	Subsystem: "extaddr",
	Name:      "cache_total",
	Help:      "Number of cache consultations during resolution, by result.",
}, []string{"result"})
