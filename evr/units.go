// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"fmt"
	"math"
)

const (
	max16 = 1<<16 - 1
	max32 = 1<<32 - 1
)

// maxMicros returns the longest duration, in microseconds, a counter of
// at most max cycles can hold, when clocked at freq MHz divided by scale.
func maxMicros(max uint64, freq uint16, scale uint32) float64 {
	return float64(max) * float64(scale) / float64(freq)
}

// toCycles converts a duration in microseconds into counter cycles of a
// clock running at freq MHz divided by scale.
// Cycles are truncated toward zero.
func toCycles(us float64, freq uint16, scale uint32, max uint64) (uint64, error) {
	if scale == 0 {
		scale = 1
	}
	hi := maxMicros(max, freq, scale)
	if math.IsNaN(us) || us < 0 || us > hi {
		return 0, fmt.Errorf("evr: %vus outside [0, %v]us: %w", us, hi, ErrRange)
	}
	ticks := uint64(us * float64(freq))
	cycles := ticks / uint64(scale)
	if cycles > max {
		cycles = max
	}
	return cycles, nil
}

// toMicros converts counter cycles of a clock running at freq MHz divided
// by scale into microseconds.
func toMicros(cycles uint64, freq uint16, scale uint32) float64 {
	if scale == 0 {
		scale = 1
	}
	return float64(cycles*uint64(scale)) / float64(freq)
}

func checkIndex(what string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("evr: invalid %s index %d (want [0, %d)): %w", what, i, n, ErrRange)
	}
	return nil
}
