// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import "errors"

var (
	ErrSyntax      = errors.New("evr: syntax error")
	ErrCapacity    = errors.New("evr: registry full")
	ErrNotFound    = errors.New("evr: no such card")
	ErrRange       = errors.New("evr: value out of range")
	ErrLink        = errors.New("evr: link failure")
	ErrReadback    = errors.New("evr: readback mismatch")
	ErrInitialized = errors.New("evr: registry already initialized")
)
