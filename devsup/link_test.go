// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devsup

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/evr/evr"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		link string
		want Link
		err  error
	}{
		{
			link: "evr1:enable",
			want: Link{Card: "evr1", Cmd: Enable{}},
		},
		{
			link: "  evr1:getFirmwareVersion  ",
			want: Link{Card: "evr1", Cmd: GetFirmware{}},
		},
		{
			link: "evr1:setPulserDelay parameter=3",
			want: Link{Card: "evr1", Cmd: SetPulserDelay{Pulser: 3}},
		},
		{
			link: "evr1:setPulserWidth parameter=0x0A",
			want: Link{Card: "evr1", Cmd: SetPulserWidth{Pulser: 10}},
		},
		{
			link: "evr1:isEnabledPulser parameter=012",
			want: Link{Card: "evr1", Cmd: IsPulserEnabled{Pulser: 10}},
		},
		{
			link: "evr2:setPdpPrescaler parameter=3",
			want: Link{Card: "evr2", Cmd: SetPDPPrescaler{PDP: 3}},
		},
		{
			link: "evr2:enableCml parameter=2",
			want: Link{Card: "evr2", Cmd: EnableCML{CML: 2}},
		},
		{
			link: "evr1:setEvent parameter=255",
			want: Link{Card: "evr1", Cmd: SetMap{Event: 255}},
		},
		{
			link: "evr1:setPrescalar parameter=1",
			want: Link{Card: "evr1", Cmd: SetPrescaler{Prescaler: 1}},
		},
		{
			link: "evr1:setUNIVSource parameter=3",
			want: Link{Card: "evr1", Cmd: SetUNIVSource{UNIV: 3}},
		},
		{
			link: "evr1:isEnabledDbus parameter=7",
			want: Link{Card: "evr1", Cmd: IsDbusEnabled{Dbus: 7}},
		},
		{link: "", err: evr.ErrSyntax},
		{link: "evr1", err: evr.ErrSyntax},
		{link: ":enable", err: evr.ErrSyntax},
		{link: "evr1:", err: evr.ErrSyntax},
		{link: "evr1:explode", err: evr.ErrSyntax},
		{link: "evr1:enable parameter=1", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay param=1", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay parameter", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay parameter=", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay parameter=x1", err: evr.ErrSyntax},
		{link: "0123456789012345678901234567890:enable", err: evr.ErrSyntax},
		{link: "evr1:setPulserDelay parameter=14", err: evr.ErrRange},
		{link: "evr1:setPulserDelay parameter=-1", err: evr.ErrRange},
		{link: "evr1:enablePdp parameter=4", err: evr.ErrRange},
		{link: "evr1:enableCml parameter=3", err: evr.ErrRange},
		{link: "evr1:setMap parameter=256", err: evr.ErrRange},
		{link: "evr1:setTTLSource parameter=8", err: evr.ErrRange},
		{link: "evr1:enableLevel parameter=7", err: evr.ErrRange},
	} {
		t.Run(tc.link, func(t *testing.T) {
			got, err := Parse(tc.link)
			switch {
			case err != nil && tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not parse link: %+v", err)
			case tc.err != nil:
				t.Fatalf("expected an error (%v), got=%v", tc.err, got)
			}
			if got != tc.want {
				t.Fatalf("invalid link:\ngot= %#v\nwant=%#v", got, tc.want)
			}
		})
	}
}

func TestLinkString(t *testing.T) {
	for _, tc := range []struct {
		link string
		want string
	}{
		{"evr1:enable", "evr1:enable"},
		{"evr1:setEvent parameter=0x10", "evr1:setMap parameter=16"},
		{"evr1:getPdpWidth   parameter=2", "evr1:getPdpWidth parameter=2"},
	} {
		t.Run(tc.link, func(t *testing.T) {
			lnk, err := Parse(tc.link)
			if err != nil {
				t.Fatalf("could not parse link: %+v", err)
			}
			if got, want := lnk.String(), tc.want; got != want {
				t.Fatalf("invalid string: got=%q, want=%q", got, want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	names := Commands()
	for _, name := range names {
		desc := commands[name]
		cmd := desc.mk(0)
		switch name {
		case "setEvent":
			name = "setMap"
		case "setPrescalar":
			name = "setPrescaler"
		}
		if got, want := cmd.Name(), name; got != want {
			t.Fatalf("invalid command name: got=%q, want=%q", got, want)
		}
		if _, ok := cmd.(Indexed); ok != (desc.what != "") {
			t.Fatalf("command %q: invalid indexed-ness", name)
		}
	}
}

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		str  string
		want Value
		err  bool
	}{
		{Bool, "1", BoolValue(true), false},
		{Bool, "off", BoolValue(false), false},
		{Bool, "True", BoolValue(true), false},
		{Bool, "2", Value{}, true},
		{Int, "0x10", IntValue(16), false},
		{Int, "-3", IntValue(-3), false},
		{Int, "1.5", Value{}, true},
		{Float, " 1.5 ", FloatValue(1.5), false},
		{Float, "1e3", FloatValue(1000), false},
		{Float, "abc", Value{}, true},
		{None, "whatever", Value{}, false},
	} {
		t.Run(fmt.Sprintf("%v-%s", tc.kind, tc.str), func(t *testing.T) {
			got, err := ParseValue(tc.kind, tc.str)
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error, got=%v", got)
			case tc.err:
				if !errors.Is(err, evr.ErrSyntax) {
					t.Fatalf("invalid error: %+v", err)
				}
				return
			case err != nil:
				t.Fatalf("could not parse value: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid value: got=%#v, want=%#v", got, tc.want)
			}
		})
	}
}

func TestAlarmOf(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		output bool
		stat   Alarm
		sevr   Severity
	}{
		{"ok", nil, false, NoAlarm, NoSeverity},
		{"link", fmt.Errorf("boom: %w", evr.ErrLink), true, CommAlarm, Invalid},
		{"readback", fmt.Errorf("boom: %w", evr.ErrReadback), true, WriteAlarm, Invalid},
		{"range", fmt.Errorf("boom: %w", evr.ErrRange), true, HwLimitAlarm, Invalid},
		{"other-in", errors.New("boom"), false, ReadAlarm, Invalid},
		{"other-out", errors.New("boom"), true, WriteAlarm, Invalid},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stat, sevr := alarmOf(tc.err, tc.output)
			if stat != tc.stat || sevr != tc.sevr {
				t.Fatalf(
					"invalid alarm: got=(%v, %v), want=(%v, %v)",
					stat, sevr, tc.stat, tc.sevr,
				)
			}
		})
	}
}
