// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"errors"
	"math"
	"testing"
)

func TestToCycles(t *testing.T) {
	for _, tc := range []struct {
		name  string
		us    float64
		freq  uint16
		scale uint32
		max   uint64
		want  uint64
		err   error
	}{
		{name: "zero", us: 0, freq: 125, scale: 1, max: max32, want: 0},
		{name: "10us", us: 10, freq: 125, scale: 1, max: max32, want: 1250},
		{name: "truncate", us: 0.0159, freq: 125, scale: 1, max: max32, want: 1},
		{name: "scaled", us: 10, freq: 125, scale: 4, max: max32, want: 312},
		{name: "scale-zero", us: 10, freq: 125, scale: 0, max: max32, want: 1250},
		{name: "width-max", us: 524, freq: 125, scale: 1, max: max16, want: 65500},
		{name: "slow-clock", us: 3, freq: 1, scale: 1, max: max16, want: 3},
		{name: "negative", us: -0.5, freq: 125, scale: 1, max: max32, err: ErrRange},
		{name: "nan", us: math.NaN(), freq: 125, scale: 1, max: max32, err: ErrRange},
		{name: "inf", us: math.Inf(+1), freq: 125, scale: 1, max: max32, err: ErrRange},
		{name: "width-overflow", us: 525, freq: 125, scale: 1, max: max16, err: ErrRange},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := toCycles(tc.us, tc.freq, tc.scale, tc.max)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not convert %vus: %+v", tc.us, err)
			}
			if got != tc.want {
				t.Fatalf("invalid cycles: got=%d, want=%d", got, tc.want)
			}
		})
	}
}

func TestToMicros(t *testing.T) {
	for _, tc := range []struct {
		cycles uint64
		freq   uint16
		scale  uint32
		want   float64
	}{
		{0, 125, 1, 0},
		{1250, 125, 1, 10},
		{312, 125, 4, 9.984},
		{125, 125, 0, 1},
		{max32, 125, 1, 34359738.36},
	} {
		got := toMicros(tc.cycles, tc.freq, tc.scale)
		if got != tc.want {
			t.Fatalf("invalid duration for %d cycles: got=%v, want=%v", tc.cycles, got, tc.want)
		}
	}
}

func TestCheckIndex(t *testing.T) {
	for _, tc := range []struct {
		i, n int
		ok   bool
	}{
		{0, 1, true},
		{13, 14, true},
		{14, 14, false},
		{-1, 14, false},
	} {
		err := checkIndex("pulser", tc.i, tc.n)
		if got := err == nil; got != tc.ok {
			t.Fatalf("invalid check of %d/%d: err=%v", tc.i, tc.n, err)
		}
		if err != nil && !errors.Is(err, ErrRange) {
			t.Fatalf("invalid error kind: %v", err)
		}
	}
}
