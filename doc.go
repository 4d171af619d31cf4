// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp23s17 provides a driver for the Microchip MCP23S17 16-bit GPIO
// expander connected over SPI.
//
// The chip exposes two 8-bit ports (A and B). Every per-pin feature of the
// chip is supported: direction, input polarity inversion, weak pull-ups,
// and interrupt-on-change either against the previous value or against a
// per-pin default comparison value.
//
// All pin configuration is performed against a local shadow copy of the
// chip's registers and is only pushed to the hardware when one of the
// Write* register commit methods is called. This lets changes to many pins
// be coalesced into a single 3-byte SPI transaction per register byte.
//
// Up to 8 chips can share one SPI connection by strapping their hardware
// address pins; see NewMultiple and NewMultipleWithTiedInterrupts.
//
// The chip's INTA/INTB outputs are active low. To react to interrupts,
// wire them to host GPIO pins capable of edge detection and pass those
// pins to one of the interrupt-enabled constructors. Interrupt dispatch
// runs on a goroutine owned by the device; listener callbacks must not
// block for long.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/20001952C.pdf
package mcp23s17
