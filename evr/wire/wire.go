// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire encodes and decodes the fixed-size UDP messages exchanged
// with a VME-EVR-230/RF board.
//
// A message is 12 bytes long, multi-byte fields in network byte order:
//
//	offset size field
//	0      1    access    (1=read, 2=write)
//	1      1    status    (set by the board)
//	2      2    data
//	4      4    address   (BaseAddr + register offset)
//	8      4    reference
package wire // import "github.com/go-lpc/evr/evr/wire"

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the size in bytes of an encoded message.
const Size = 12

// BaseAddr is the bus address of the first board register.
const BaseAddr = 0x7a000000

// Access is the kind of register access a message requests.
type Access uint8

const (
	Read  Access = 1
	Write Access = 2
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

var ErrSize = errors.New("wire: invalid message size")

// Msg is a single 16-bit register exchange.
type Msg struct {
	Access Access
	Status uint8
	Data   uint16
	Addr   uint32
	Ref    uint32
}

// NewRead returns a read request for register reg.
func NewRead(reg uint8) Msg {
	return Msg{Access: Read, Addr: BaseAddr + uint32(reg)}
}

// NewWrite returns a request writing v into register reg.
func NewWrite(reg uint8, v uint16) Msg {
	return Msg{Access: Write, Data: v, Addr: BaseAddr + uint32(reg)}
}

// Reg returns the register offset addressed by the message.
func (msg Msg) Reg() uint8 {
	return uint8(msg.Addr - BaseAddr)
}

// Encode writes msg into p, which must be at least Size bytes long.
func (msg Msg) Encode(p []byte) {
	_ = p[Size-1]
	p[0] = uint8(msg.Access)
	p[1] = msg.Status
	binary.BigEndian.PutUint16(p[2:4], msg.Data)
	binary.BigEndian.PutUint32(p[4:8], msg.Addr)
	binary.BigEndian.PutUint32(p[8:12], msg.Ref)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (msg Msg) MarshalBinary() ([]byte, error) {
	p := make([]byte, Size)
	msg.Encode(p)
	return p, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The status byte is copied but never interpreted.
func (msg *Msg) UnmarshalBinary(p []byte) error {
	if len(p) != Size {
		return fmt.Errorf("wire: could not decode %d bytes: %w", len(p), ErrSize)
	}
	msg.Access = Access(p[0])
	msg.Status = p[1]
	msg.Data = binary.BigEndian.Uint16(p[2:4])
	msg.Addr = binary.BigEndian.Uint32(p[4:8])
	msg.Ref = binary.BigEndian.Uint32(p[8:12])
	return nil
}

// Decode decodes a message from p.
func Decode(p []byte) (Msg, error) {
	var msg Msg
	err := msg.UnmarshalBinary(p)
	return msg, err
}

func (msg Msg) String() string {
	return fmt.Sprintf(
		"Msg{%v reg=0x%02x data=0x%04x status=0x%02x ref=%d}",
		msg.Access, msg.Reg(), msg.Data, msg.Status, msg.Ref,
	)
}
