// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

// Register addresses for IOCON.BANK = 0, the power-on default. Paired
// registers interleave: port A on even addresses, port B on odd.
const (
	regIODIRA   = 0x00 // direction, 1 = input
	regIODIRB   = 0x01
	regIPOLA    = 0x02 // input polarity, 1 = report inverted
	regIPOLB    = 0x03
	regGPINTENA = 0x04 // interrupt-on-change enable
	regGPINTENB = 0x05
	regDEFVALA  = 0x06 // default comparison value
	regDEFVALB  = 0x07
	regINTCONA  = 0x08 // interrupt mode, 1 = compare against DEFVAL
	regINTCONB  = 0x09
	regIOCON    = 0x0A // device configuration, shared by both ports
	regGPPUA    = 0x0C // weak pull-up enable
	regGPPUB    = 0x0D
	regINTFA    = 0x0E // interrupt flags, read-only
	regINTFB    = 0x0F
	regINTCAPA  = 0x10 // port value captured at interrupt time, read-only
	regINTCAPB  = 0x11
	regGPIOA    = 0x12 // live port value
	regGPIOB    = 0x13
	regOLATA    = 0x14 // output latch
	regOLATB    = 0x15
)

// SPI opcode bases. Bits 1..3 of the opcode carry the hardware address
// strapped on the A0..A2 pins once IOCON.HAEN is set.
const (
	writeOpcode = 0x40
	readOpcode  = 0x41
)

// IOCON bits used by this driver.
const (
	ioconMirror = 0x40 // OR INTA and INTB onto either line
	ioconHAEN   = 0x08 // enable hardware address decoding
)

// registerFile is the local shadow copy of the chip's register pairs,
// indexed 0 for port A and 1 for port B. It reflects what has been
// configured locally, not necessarily what is on the chip: a byte is
// only known to match the hardware immediately after the corresponding
// commit or read succeeded.
//
// input is special: it holds the last value read from GPIOA/GPIOB and is
// only ever updated by an explicit read, never by configuration.
type registerFile struct {
	iodir   [2]byte
	ipol    [2]byte
	gpinten [2]byte
	defval  [2]byte
	intcon  [2]byte
	gppu    [2]byte
	olat    [2]byte
	input   [2]byte
}

// newRegisterFile returns the power-on state of the chip: every pin an
// input, everything else cleared.
func newRegisterFile() registerFile {
	return registerFile{
		iodir: [2]byte{0xFF, 0xFF},
	}
}
