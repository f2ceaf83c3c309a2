// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package rewrite

import (
	"errors"

	"github.com/vitrun/qart/qr"
)

// ErrQRDisabled is returned when QR image generation is switched off.
var ErrQRDisabled = errors.New("QR image generation is disabled")

// QRPNG renders the given join URL as a QR code PNG. Generation is gated by
// Options.QRImageGeneration; the rendering sink that displays the image is
// the caller's business.
func (rw *Rewriter) QRPNG(url string) ([]byte, error) {
	if !rw.opts.QRImageGeneration {
		return nil, ErrQRDisabled
	}
	code, err := qr.Encode(url, qr.M)
	if err != nil {
		return nil, err
	}
	return code.PNG(), nil
}
