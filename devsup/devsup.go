// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devsup binds process records to event receiver operations.
//
// A record carries a link of the form
//
//	NAME:COMMAND [parameter=N]
//
// which is parsed once, when the record is loaded, into a typed Command.
// Processing a record is done in two phases: the issue phase marks the
// record active and queues a job; a worker runs the job against the card,
// then re-enters the record processing under the record scan lock to
// publish the result and raise alarms.
package devsup // import "github.com/go-lpc/evr/devsup"

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/evr/evr"
)

// Kind is the type of value a command consumes or produces.
type Kind uint8

const (
	None Kind = iota
	Bool
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is the value field of a record.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
}

func BoolValue(v bool) Value     { return Value{Kind: Bool, Bool: v} }
func IntValue(v int64) Value     { return Value{Kind: Int, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: Float, Float: v} }

func (v Value) String() string {
	switch v.Kind {
	case Bool:
		if v.Bool {
			return "1"
		}
		return "0"
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return ""
}

// ParseValue parses s as a value of kind k.
// Integers accept the 0x and 0 base prefixes. Booleans accept 0, 1,
// true and false.
func ParseValue(k Kind, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch k {
	case None:
		return Value{}, nil
	case Bool:
		switch strings.ToLower(s) {
		case "1", "true", "on":
			return BoolValue(true), nil
		case "0", "false", "off":
			return BoolValue(false), nil
		}
	case Int:
		v, err := strconv.ParseInt(s, 0, 64)
		if err == nil {
			return IntValue(v), nil
		}
	case Float:
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return FloatValue(v), nil
		}
	}
	return Value{}, fmt.Errorf("devsup: invalid %v value %q: %w", k, s, evr.ErrSyntax)
}

// Alarm is the alarm status of a record.
type Alarm uint8

const (
	NoAlarm Alarm = iota
	ReadAlarm
	WriteAlarm
	CommAlarm
	HwLimitAlarm
	UDFAlarm
)

func (a Alarm) String() string {
	switch a {
	case NoAlarm:
		return "NO_ALARM"
	case ReadAlarm:
		return "READ"
	case WriteAlarm:
		return "WRITE"
	case CommAlarm:
		return "COMM"
	case HwLimitAlarm:
		return "HW_LIMIT"
	case UDFAlarm:
		return "UDF"
	}
	return fmt.Sprintf("alarm(%d)", uint8(a))
}

// Severity is the alarm severity of a record.
type Severity uint8

const (
	NoSeverity Severity = iota
	Minor
	Major
	Invalid
)

func (s Severity) String() string {
	switch s {
	case NoSeverity:
		return "NO_ALARM"
	case Minor:
		return "MINOR"
	case Major:
		return "MAJOR"
	case Invalid:
		return "INVALID"
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// alarmOf maps the error of a job to an alarm.
func alarmOf(err error, output bool) (Alarm, Severity) {
	switch {
	case err == nil:
		return NoAlarm, NoSeverity
	case errors.Is(err, evr.ErrLink):
		return CommAlarm, Invalid
	case errors.Is(err, evr.ErrReadback):
		return WriteAlarm, Invalid
	case errors.Is(err, evr.ErrRange):
		return HwLimitAlarm, Invalid
	case output:
		return WriteAlarm, Invalid
	default:
		return ReadAlarm, Invalid
	}
}
