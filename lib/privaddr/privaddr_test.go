// Copyright (C) 2026 The Qrjoin Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package privaddr

import (
	"slices"
	"testing"
)

func TestIsPrivate(t *testing.T) {
	cases := []struct {
		buf  []byte
		want bool
	}{
		{[]byte{10, 0, 0, 1}, true},
		{[]byte{10, 255, 255, 255}, true},
		{[]byte{192, 168, 1, 50}, true},
		{[]byte{192, 167, 1, 50}, false},
		{[]byte{172, 16, 0, 1}, true},
		{[]byte{172, 31, 200, 9}, true},
		{[]byte{172, 15, 0, 1}, false},
		{[]byte{172, 32, 0, 1}, false},
		{[]byte{8, 8, 8, 8}, false},
		{[]byte{203, 0, 113, 9}, false},
		{[]byte{11, 0, 0, 1}, false},
		// Wrong lengths are never private, even with matching prefixes.
		{[]byte{10, 0, 0}, false},
		{[]byte{192, 168, 1, 50, 0}, false},
		{[]byte{}, false},
		{nil, false},
	}

	for _, tc := range cases {
		if got := IsPrivate(tc.buf); got != tc.want {
			t.Errorf("IsPrivate(%v) == %v, expected %v", tc.buf, got, tc.want)
		}
	}
}

func TestScanOffsets(t *testing.T) {
	cases := []struct {
		buf  []byte
		want []int
	}{
		{[]byte{192, 168, 1, 50}, []int{0}},
		{[]byte{0, 0, 172, 20, 5, 5}, []int{2}},
		{[]byte{1, 10, 2, 3}, []int{1}},
		{[]byte{192, 169, 1, 1}, nil},
		{[]byte{172, 15, 0, 0}, nil},
		// Trailing marker byte without room for the second byte of the
		// two-byte patterns.
		{[]byte{0, 192}, nil},
		{[]byte{0, 10}, []int{1}},
		// Multiple candidates stay in ascending order.
		{[]byte{10, 0, 192, 168, 0, 10}, []int{0, 2, 5}},
		{nil, nil},
	}

	for _, tc := range cases {
		if got := ScanOffsets(tc.buf); !slices.Equal(got, tc.want) {
			t.Errorf("ScanOffsets(%v) == %v, expected %v", tc.buf, got, tc.want)
		}
	}
}
