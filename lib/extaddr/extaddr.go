// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package extaddr resolves the external (publicly reachable) IPv4 address
// of this host by querying an ordered list of lookup providers, caching the
// answer for a bounded time window.
package extaddr

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/qrjoin/qrjoin/internal/slogutil"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultTimeout = 5 * time.Second
)

// ErrExhausted is returned when every provider was tried and none produced
// a usable address.
var ErrExhausted = errors.New("all external address providers exhausted")

// Four groups of 1-3 decimal digits. No further range validation happens at
// this layer.
var dottedQuadExp = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)

// A Provider performs one external address lookup. Implementations should
// honor the context deadline; whatever they return is validated by the
// Resolver, so they need not check the response shape themselves.
type Provider interface {
	Name() string
	Lookup(ctx context.Context) (string, error)
}

// Resolver queries providers in order and caches the first valid answer.
// It is safe for concurrent use; callers serialize on an internal mutex so
// at most one provider sweep is in flight at a time.
type Resolver struct {
	providers []Provider
	ttl       time.Duration
	timeout   time.Duration
	now       func() time.Time // test hook

	mut        sync.Mutex
	cachedAddr string
	cachedAt   time.Time
}

// NewResolver returns a resolver over the given providers, in order. With
// no providers the default set is used.
func NewResolver(providers ...Provider) *Resolver {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	return &Resolver{
		providers: providers,
		ttl:       DefaultTTL,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
}

// SetTTL changes how long a resolved address is served from cache.
func (r *Resolver) SetTTL(ttl time.Duration) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.ttl = ttl
}

// SetTimeout changes the per-provider lookup timeout.
func (r *Resolver) SetTimeout(timeout time.Duration) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.timeout = timeout
}

// Cached returns the currently cached address, if any is valid.
func (r *Resolver) Cached() (string, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	if r.cachedAddr != "" && r.now().Sub(r.cachedAt) < r.ttl {
		return r.cachedAddr, true
	}
	return "", false
}

// Resolve returns the external IPv4 address as a dotted quad. A cache entry
// younger than the TTL is returned without any network access. Otherwise
// providers are queried one at a time with a per-provider timeout; the
// first response that, trimmed of whitespace, matches a strict dotted-quad
// pattern wins and overwrites the cache. Failing providers are skipped
// without retry. When every provider fails, ErrExhausted is returned.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mut.Lock()
	defer r.mut.Unlock()

	if r.cachedAddr != "" && r.now().Sub(r.cachedAt) < r.ttl {
		metricCacheTotal.WithLabelValues("hit").Inc()
		return r.cachedAddr, nil
	}
	metricCacheTotal.WithLabelValues("miss").Inc()

	for _, p := range r.providers {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		addr, err := p.Lookup(pctx)
		cancel()
		if err != nil {
			slog.Debug("External address provider failed", "provider", p.Name(), slogutil.Error(err))
			metricLookupsTotal.WithLabelValues(p.Name(), "error").Inc()
			continue
		}

		addr = strings.TrimSpace(addr)
		if !dottedQuadExp.MatchString(addr) {
			slog.Debug("External address provider returned junk", "provider", p.Name(), "len", len(addr))
			metricLookupsTotal.WithLabelValues(p.Name(), "invalid").Inc()
			continue
		}

		r.cachedAddr = addr
		r.cachedAt = r.now()
		metricLookupsTotal.WithLabelValues(p.Name(), "ok").Inc()
		slog.Debug("Resolved external address", "provider", p.Name(), "address", addr)
		return addr, nil
	}

	return "", ErrExhausted
}
