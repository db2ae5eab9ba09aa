// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evr holds the driver and the IOC layer of the VME-EVR-230/RF
// event receiver cards, reached over their UDP remote-programming port.
//
// The card driver lives in the evr sub-package, the record layer in
// devsup and the IOC runtime (shell, run control, link monitor) in ioc.
package evr // import "github.com/go-lpc/evr"

import (
	"runtime/debug"
)

const modPath = "github.com/go-lpc/evr"

// Version returns the version of the evr module and its checksum, as
// recorded in the binary build information.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	mods := append([]*debug.Module{&b.Main}, b.Deps...)
	for _, m := range mods {
		if m == nil || m.Path != modPath {
			continue
		}
		if r := m.Replace; r != nil {
			if r.Version == "" {
				return m.Version + "*", ""
			}
			return r.Version, r.Sum
		}
		return m.Version, m.Sum
	}
	return "", ""
}
