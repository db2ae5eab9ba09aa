// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devsup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/evr/evr"
)

// Link is a parsed record link.
type Link struct {
	Card string
	Cmd  Command
}

func (lnk Link) String() string {
	if cmd, ok := lnk.Cmd.(Indexed); ok {
		return fmt.Sprintf("%s:%s parameter=%d", lnk.Card, cmd.Name(), cmd.Index())
	}
	return lnk.Card + ":" + lnk.Cmd.Name()
}

type cmdDesc struct {
	what string // channel kind, empty for card-wide commands
	n    int    // number of channels
	mk   func(i int) Command
}

func cardCmd(mk func() Command) cmdDesc {
	return cmdDesc{mk: func(int) Command { return mk() }}
}

func indexed(what string, n int, mk func(i int) Command) cmdDesc {
	return cmdDesc{what: what, n: n, mk: mk}
}

var commands = map[string]cmdDesc{
	"enable":             cardCmd(func() Command { return Enable{} }),
	"isEnabled":          cardCmd(func() Command { return IsEnabled{} }),
	"flush":              cardCmd(func() Command { return Flush{} }),
	"setClock":           cardCmd(func() Command { return SetClock{} }),
	"getClock":           cardCmd(func() Command { return GetClock{} }),
	"setExternalEvent":   cardCmd(func() Command { return SetExternalEvent{} }),
	"getExternalEvent":   cardCmd(func() Command { return GetExternalEvent{} }),
	"getFirmwareVersion": cardCmd(func() Command { return GetFirmware{} }),
	"resetRxViolation":   cardCmd(func() Command { return ResetRxViolation{} }),
	"isRxViolation":      cardCmd(func() Command { return IsRxViolation{} }),
	"resetPolarity":      cardCmd(func() Command { return ResetPolarity{} }),
	"muxFrontPanel":      cardCmd(func() Command { return MuxFrontPanel{} }),
	"factoryReset":       cardCmd(func() Command { return FactoryReset{} }),

	"enablePulser":    indexed("pulser", evr.NumPulsers, func(i int) Command { return EnablePulser{Pulser: i} }),
	"isEnabledPulser": indexed("pulser", evr.NumPulsers, func(i int) Command { return IsPulserEnabled{Pulser: i} }),
	"setPulserDelay":  indexed("pulser", evr.NumPulsers, func(i int) Command { return SetPulserDelay{Pulser: i} }),
	"getPulserDelay":  indexed("pulser", evr.NumPulsers, func(i int) Command { return GetPulserDelay{Pulser: i} }),
	"setPulserWidth":  indexed("pulser", evr.NumPulsers, func(i int) Command { return SetPulserWidth{Pulser: i} }),
	"getPulserWidth":  indexed("pulser", evr.NumPulsers, func(i int) Command { return GetPulserWidth{Pulser: i} }),

	"enablePdp":       indexed("PDP", evr.NumPDPs, func(i int) Command { return EnablePDP{PDP: i} }),
	"isEnabledPdp":    indexed("PDP", evr.NumPDPs, func(i int) Command { return IsPDPEnabled{PDP: i} }),
	"setPdpPrescaler": indexed("PDP", evr.NumPDPs, func(i int) Command { return SetPDPPrescaler{PDP: i} }),
	"getPdpPrescaler": indexed("PDP", evr.NumPDPs, func(i int) Command { return GetPDPPrescaler{PDP: i} }),
	"setPdpDelay":     indexed("PDP", evr.NumPDPs, func(i int) Command { return SetPDPDelay{PDP: i} }),
	"getPdpDelay":     indexed("PDP", evr.NumPDPs, func(i int) Command { return GetPDPDelay{PDP: i} }),
	"setPdpWidth":     indexed("PDP", evr.NumPDPs, func(i int) Command { return SetPDPWidth{PDP: i} }),
	"getPdpWidth":     indexed("PDP", evr.NumPDPs, func(i int) Command { return GetPDPWidth{PDP: i} }),

	"enableCml":       indexed("CML", evr.NumCMLs, func(i int) Command { return EnableCML{CML: i} }),
	"isEnabledCml":    indexed("CML", evr.NumCMLs, func(i int) Command { return IsCMLEnabled{CML: i} }),
	"setCmlPrescaler": indexed("CML", evr.NumCMLs, func(i int) Command { return SetCMLPrescaler{CML: i} }),
	"getCmlPrescaler": indexed("CML", evr.NumCMLs, func(i int) Command { return GetCMLPrescaler{CML: i} }),

	"setMap":       indexed("event", evr.NumEvents, func(i int) Command { return SetMap{Event: i} }),
	"setEvent":     indexed("event", evr.NumEvents, func(i int) Command { return SetMap{Event: i} }),
	"getMap":       indexed("event", evr.NumEvents, func(i int) Command { return GetMap{Event: i} }),
	"setPrescaler": indexed("prescaler", evr.NumPrescalers, func(i int) Command { return SetPrescaler{Prescaler: i} }),
	"setPrescalar": indexed("prescaler", evr.NumPrescalers, func(i int) Command { return SetPrescaler{Prescaler: i} }),
	"getPrescaler": indexed("prescaler", evr.NumPrescalers, func(i int) Command { return GetPrescaler{Prescaler: i} }),

	"setTTLSource":     indexed("TTL", evr.NumTTLs, func(i int) Command { return SetTTLSource{TTL: i} }),
	"getTTLSource":     indexed("TTL", evr.NumTTLs, func(i int) Command { return GetTTLSource{TTL: i} }),
	"setUNIVSource":    indexed("UNIV", evr.NumUNIVs, func(i int) Command { return SetUNIVSource{UNIV: i} }),
	"getUNIVSource":    indexed("UNIV", evr.NumUNIVs, func(i int) Command { return GetUNIVSource{UNIV: i} }),
	"enableLevel":      indexed("level", evr.NumLevels, func(i int) Command { return EnableLevel{Level: i} }),
	"isEnabledLevel":   indexed("level", evr.NumLevels, func(i int) Command { return IsLevelEnabled{Level: i} }),
	"enableTrigger":    indexed("trigger", evr.NumTriggers, func(i int) Command { return EnableTrigger{Trigger: i} }),
	"isEnabledTrigger": indexed("trigger", evr.NumTriggers, func(i int) Command { return IsTriggerEnabled{Trigger: i} }),
	"enableDbus":       indexed("dbus", evr.NumDbus, func(i int) Command { return EnableDbus{Dbus: i} }),
	"isEnabledDbus":    indexed("dbus", evr.NumDbus, func(i int) Command { return IsDbusEnabled{Dbus: i} }),
}

// Commands returns the sorted list of command names accepted in links.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse parses a record link of the form:
//
//	NAME:COMMAND [parameter=N]
//
// N accepts the 0x and 0 base prefixes.
// Unknown commands and keys are syntax errors. Channel indices outside
// the domain of the command are range errors.
func Parse(s string) (Link, error) {
	toks := strings.Fields(s)
	if len(toks) == 0 {
		return Link{}, fmt.Errorf("devsup: empty link: %w", evr.ErrSyntax)
	}

	name, cmd, ok := strings.Cut(toks[0], ":")
	switch {
	case !ok || name == "":
		return Link{}, fmt.Errorf("devsup: missing card name in link %q: %w", s, evr.ErrSyntax)
	case cmd == "":
		return Link{}, fmt.Errorf("devsup: missing command in link %q: %w", s, evr.ErrSyntax)
	case len(name) > evr.NameLen:
		return Link{}, fmt.Errorf("devsup: card name %q too long in link %q: %w", name, s, evr.ErrSyntax)
	}

	desc, ok := commands[cmd]
	if !ok {
		return Link{}, fmt.Errorf("devsup: unknown command %q in link %q: %w", cmd, s, evr.ErrSyntax)
	}

	var (
		param int64
		set   bool
	)
	for _, tok := range toks[1:] {
		key, val, ok := strings.Cut(tok, "=")
		switch {
		case !ok || key == "":
			return Link{}, fmt.Errorf("devsup: invalid key-value pair %q in link %q: %w", tok, s, evr.ErrSyntax)
		case val == "":
			return Link{}, fmt.Errorf("devsup: missing value for key %q in link %q: %w", key, s, evr.ErrSyntax)
		case key != "parameter":
			return Link{}, fmt.Errorf("devsup: unknown key %q in link %q: %w", key, s, evr.ErrSyntax)
		}
		v, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return Link{}, fmt.Errorf("devsup: invalid parameter %q in link %q: %w", val, s, evr.ErrSyntax)
		}
		param = v
		set = true
	}

	switch {
	case desc.what == "" && set:
		return Link{}, fmt.Errorf("devsup: command %q takes no parameter in link %q: %w", cmd, s, evr.ErrSyntax)
	case desc.what != "" && !set:
		return Link{}, fmt.Errorf("devsup: command %q requires a %s parameter in link %q: %w", cmd, desc.what, s, evr.ErrSyntax)
	case desc.what != "" && (param < 0 || param >= int64(desc.n)):
		return Link{}, fmt.Errorf(
			"devsup: invalid %s %d (want [0, %d)) in link %q: %w",
			desc.what, param, desc.n, s, evr.ErrRange,
		)
	}

	return Link{Card: name, Cmd: desc.mk(int(param))}, nil
}
