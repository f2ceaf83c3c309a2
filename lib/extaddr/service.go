// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package extaddr

import (
	"context"
	"log/slog"
	"time"

	"github.com/qrjoin/qrjoin/internal/slogutil"
)

// Service keeps a Resolver's cache warm by re-resolving at half the TTL
// cadence, so callers in daemon mode normally answer from cache. It
// implements suture.Service.
type Service struct {
	res *Resolver
}

func NewService(res *Resolver) *Service {
	return &Service{res: res}
}

func (s *Service) Serve(ctx context.Context) error {
	// Fire immediately on start, then on the timer.
	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.res.Resolve(ctx); err != nil {
			slog.Debug("External address refresh failed", slogutil.Error(err))
		}

		s.res.mut.Lock()
		next := s.res.ttl / 2
		s.res.mut.Unlock()
		timer.Reset(next)
	}
}

func (s *Service) String() string {
	return "extaddr.Service"
}
