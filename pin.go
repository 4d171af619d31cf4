// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

import "strconv"

// Pin identifies one of the 16 I/O pins of an MCP23S17. It is a plain
// value: it carries the pin's port and its bit position within that
// port's register byte, nothing else. Use FromPinNumber or the GPA0..GPB7
// package variables to obtain one.
//
// Pin is comparable and can be used as a map key.
type Pin struct {
	number uint8
	portA  bool
	mask   uint8
}

func makePin(number uint8) Pin {
	return Pin{
		number: number,
		portA:  number < 8,
		mask:   1 << (number & 7),
	}
}

// The 16 pins of the chip, named as in the datasheet pinout. GPA0..GPA7
// are pin numbers 0..7, GPB0..GPB7 are pin numbers 8..15.
var (
	GPA0 = makePin(0)
	GPA1 = makePin(1)
	GPA2 = makePin(2)
	GPA3 = makePin(3)
	GPA4 = makePin(4)
	GPA5 = makePin(5)
	GPA6 = makePin(6)
	GPA7 = makePin(7)
	GPB0 = makePin(8)
	GPB1 = makePin(9)
	GPB2 = makePin(10)
	GPB3 = makePin(11)
	GPB4 = makePin(12)
	GPB5 = makePin(13)
	GPB6 = makePin(14)
	GPB7 = makePin(15)
)

// portPins holds the pins of each port in ascending bit order. Interrupt
// dispatch iterates these so flagged bits are always handled from bit 0
// upward.
var portPins = [2][8]Pin{
	{GPA0, GPA1, GPA2, GPA3, GPA4, GPA5, GPA6, GPA7},
	{GPB0, GPB1, GPB2, GPB3, GPB4, GPB5, GPB6, GPB7},
}

// FromPinNumber returns the Pin with the given number. Numbers 0..7 map
// to port A bits 0..7, numbers 8..15 to port B bits 0..7. Any other
// number returns ErrPinNumber.
func FromPinNumber(number int) (Pin, error) {
	if number < 0 || number > 15 {
		return Pin{}, ErrPinNumber
	}
	return portPins[number/8][number%8], nil
}

// Number returns the pin number, 0..15.
func (p Pin) Number() int {
	return int(p.number)
}

// IsPortA reports whether the pin belongs to port A.
func (p Pin) IsPortA() bool {
	return p.portA
}

// IsPortB reports whether the pin belongs to port B.
func (p Pin) IsPortB() bool {
	return !p.portA
}

// String returns the datasheet name of the pin, e.g. "GPA0" or "GPB7".
func (p Pin) String() string {
	if p.portA {
		return "GPA" + strconv.Itoa(int(p.number))
	}
	return "GPB" + strconv.Itoa(int(p.number)-8)
}

// portIndex returns 0 for port A and 1 for port B, the index used by the
// [2]byte register pairs in registerFile.
func (p Pin) portIndex() int {
	if p.portA {
		return 0
	}
	return 1
}

// resolveByte selects the byte of a register pair belonging to this
// pin's port.
func (p Pin) resolveByte(byteA, byteB byte) byte {
	if p.portA {
		return byteA
	}
	return byteB
}

// bitIn tests this pin's bit in a register byte.
func (p Pin) bitIn(b byte) bool {
	return b&p.mask != 0
}

// applyBit returns b with this pin's bit set or cleared. Other bits are
// untouched.
func (p Pin) applyBit(b byte, value bool) byte {
	if value {
		return b | p.mask
	}
	return b &^ p.mask
}
