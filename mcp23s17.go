// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Errors returned by the driver. Transport failures are wrapped with
// fmt.Errorf and can be unwrapped with errors.Is/As.
var (
	ErrPinNumber             = errors.New("mcp23s17: pin number must be in 0..15")
	ErrHardwareAddress       = errors.New("mcp23s17: hardware address must be in 0..7")
	ErrDeviceCount           = errors.New("mcp23s17: device count must be in 1..8")
	ErrInterruptPins         = errors.New("mcp23s17: need at least one interrupt pin per device")
	ErrMissingConn           = errors.New("mcp23s17: SPI connection is required")
	ErrMissingInterruptPin   = errors.New("mcp23s17: interrupt pin is required")
	ErrNilListener           = errors.New("mcp23s17: listener must not be nil")
	ErrListenerRegistered    = errors.New("mcp23s17: listener already registered")
	ErrListenerNotRegistered = errors.New("mcp23s17: listener not registered")
	ErrPinIsOutput           = errors.New("mcp23s17: pin is configured as output")
)

// Dev represents one MCP23S17 chip on an SPI connection.
//
// All register commits and reads of one Dev are serialized behind a
// single mutex, so a Dev is safe for concurrent use from application
// code and from its own interrupt goroutines. Two Devs with different
// hardware addresses on the same connection are independent as far as
// this driver is concerned; electrical serialization of the shared bus
// is the SPI port's responsibility.
type Dev struct {
	c       spi.Conn
	hwAddr  uint8
	writeOp byte
	readOp  byte

	// Interrupt lines, kept for the lifetime of the Dev. With a tied
	// interrupt configuration both fields refer to the same pin.
	intA gpio.PinIn
	intB gpio.PinIn

	// checkInput enables the transient-interrupt filter and the
	// reassertion retry loop, see serviceInterrupts.
	checkInput bool

	// mu guards the SPI connection and the register shadow. Interleaved
	// partial transactions would corrupt the 3-byte framing, and the
	// shadow bytes must never be observed mid-update.
	mu   sync.Mutex
	regs registerFile

	// viewMu guards views. A PinView may be created lazily from the
	// interrupt goroutine concurrently with application code.
	viewMu sync.Mutex
	views  map[Pin]*PinView

	global listenerSet

	halt sync.Once
	done chan struct{}
}

func newDev(c spi.Conn, hwAddr int, intA, intB gpio.PinIn) (*Dev, error) {
	if c == nil {
		return nil, ErrMissingConn
	}
	if hwAddr < 0 || hwAddr > 7 {
		return nil, ErrHardwareAddress
	}
	return &Dev{
		c:       c,
		hwAddr:  uint8(hwAddr),
		writeOp: writeOpcode | byte(hwAddr)<<1,
		readOp:  readOpcode | byte(hwAddr)<<1,
		intA:    intA,
		intB:    intB,
		regs:    newRegisterFile(),
		views:   make(map[Pin]*PinView, 16),
		done:    make(chan struct{}),
	}, nil
}

// New returns a Dev for a chip whose interrupt outputs are not wired to
// the host. hwAddr is the address strapped on the chip's A0..A2 pins; it
// only matters once IOCON.HAEN has been set, see NewMultiple.
func New(c spi.Conn, hwAddr int) (*Dev, error) {
	return newDev(c, hwAddr, nil, nil)
}

// NewWithTiedInterrupts returns a Dev for a chip whose INTA and INTB
// outputs are wired together to a single host pin. It sets IOCON.MIRROR
// on the chip so activity on either port pulls the shared line low.
func NewWithTiedInterrupts(c spi.Conn, hwAddr int, interrupt gpio.PinIn) (*Dev, error) {
	if interrupt == nil {
		return nil, ErrMissingInterruptPin
	}
	d, err := newDev(c, hwAddr, interrupt, interrupt)
	if err != nil {
		return nil, err
	}
	if err := d.writeIOCON(ioconMirror); err != nil {
		return nil, err
	}
	if err := d.attachInterruptOnLow(interrupt, d.serviceInterrupts); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithInterrupts returns a Dev with both interrupt outputs wired to
// separate host pins.
func NewWithInterrupts(c spi.Conn, hwAddr int, portAInterrupt, portBInterrupt gpio.PinIn) (*Dev, error) {
	if portAInterrupt == nil || portBInterrupt == nil {
		return nil, ErrMissingInterruptPin
	}
	d, err := newDev(c, hwAddr, portAInterrupt, portBInterrupt)
	if err != nil {
		return nil, err
	}
	if err := d.attachInterruptOnLow(portAInterrupt, d.handlePortAInterrupt); err != nil {
		return nil, err
	}
	if err := d.attachInterruptOnLow(portBInterrupt, d.handlePortBInterrupt); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithPortAInterrupts returns a Dev with only the INTA output wired.
func NewWithPortAInterrupts(c spi.Conn, hwAddr int, portAInterrupt gpio.PinIn) (*Dev, error) {
	if portAInterrupt == nil {
		return nil, ErrMissingInterruptPin
	}
	d, err := newDev(c, hwAddr, portAInterrupt, nil)
	if err != nil {
		return nil, err
	}
	if err := d.attachInterruptOnLow(portAInterrupt, d.handlePortAInterrupt); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithPortBInterrupts returns a Dev with only the INTB output wired.
func NewWithPortBInterrupts(c spi.Conn, hwAddr int, portBInterrupt gpio.PinIn) (*Dev, error) {
	if portBInterrupt == nil {
		return nil, ErrMissingInterruptPin
	}
	d, err := newDev(c, hwAddr, nil, portBInterrupt)
	if err != nil {
		return nil, err
	}
	if err := d.attachInterruptOnLow(portBInterrupt, d.handlePortBInterrupt); err != nil {
		return nil, err
	}
	return d, nil
}

// NewMultiple returns count Devs sharing one SPI connection, with
// hardware addresses 0..count-1 in list order. The chips must have their
// A0..A2 pins strapped accordingly.
//
// Until IOCON.HAEN is set every chip on the bus answers to address 0, so
// the first device is used to broadcast the HAEN-enabling configuration
// write to all of them.
func NewMultiple(c spi.Conn, count int) ([]*Dev, error) {
	devs, err := newMultiple(c, count, nil)
	if err != nil {
		return nil, err
	}
	if err := devs[0].writeIOCON(ioconHAEN); err != nil {
		return nil, err
	}
	return devs, nil
}

// NewMultipleWithTiedInterrupts returns count Devs sharing one SPI
// connection, each with its INTA and INTB outputs tied together to its
// own host pin. interrupts must hold at least count pins; interrupts[i]
// belongs to the device with hardware address i.
//
// IOCON.HAEN and IOCON.MIRROR are set on every chip. Some chips have
// been observed to miss the broadcast configuration write, so it is
// issued twice: once through the first device before HAEN takes effect,
// and once explicitly addressed to the last device in the list.
//
// Devices built this way filter transient interrupts against the live
// port value and retry servicing while the line stays asserted, see
// InterruptReassertRetries.
func NewMultipleWithTiedInterrupts(c spi.Conn, count int, interrupts []gpio.PinIn) ([]*Dev, error) {
	if count < 1 || count > 8 {
		return nil, ErrDeviceCount
	}
	if len(interrupts) < count {
		return nil, ErrInterruptPins
	}
	devs, err := newMultiple(c, count, interrupts)
	if err != nil {
		return nil, err
	}
	if err := devs[0].writeIOCON(ioconHAEN | ioconMirror); err != nil {
		return nil, err
	}
	if err := devs[count-1].writeIOCON(ioconHAEN | ioconMirror); err != nil {
		return nil, err
	}
	for _, d := range devs {
		if err := d.attachInterruptOnLow(d.intA, d.serviceInterrupts); err != nil {
			return nil, err
		}
	}
	return devs, nil
}

func newMultiple(c spi.Conn, count int, interrupts []gpio.PinIn) ([]*Dev, error) {
	if count < 1 || count > 8 {
		return nil, ErrDeviceCount
	}
	devs := make([]*Dev, count)
	for i := range devs {
		var intPin gpio.PinIn
		if interrupts != nil {
			if interrupts[i] == nil {
				return nil, ErrMissingInterruptPin
			}
			intPin = interrupts[i]
		}
		d, err := newDev(c, i, intPin, intPin)
		if err != nil {
			return nil, err
		}
		if intPin != nil {
			d.checkInput = true
		}
		devs[i] = d
	}
	return devs, nil
}

// PinView returns the view for the given pin, creating it on first use.
// Exactly one view exists per pin for the lifetime of the Dev.
func (d *Dev) PinView(p Pin) *PinView {
	d.viewMu.Lock()
	defer d.viewMu.Unlock()
	pv, ok := d.views[p]
	if !ok {
		pv = &PinView{dev: d, pin: p}
		d.views[p] = pv
	}
	return pv
}

// PinViews returns the views of all 16 pins in pin number order.
func (d *Dev) PinViews() []*PinView {
	views := make([]*PinView, 16)
	for i := range views {
		views[i] = d.PinView(portPins[i/8][i%8])
	}
	return views
}

// AddGlobalListener registers a listener invoked for every interrupt of
// every pin of this device, before the affected pin's own listeners. The
// same listener value cannot be registered twice.
func (d *Dev) AddGlobalListener(l InterruptListener) error {
	return d.global.add(l)
}

// RemoveGlobalListener unregisters a listener previously added with
// AddGlobalListener.
func (d *Dev) RemoveGlobalListener(l InterruptListener) error {
	return d.global.remove(l)
}

// writeRegister issues one 3-byte write frame. Callers must hold d.mu.
func (d *Dev) writeRegister(reg, value byte) error {
	if err := d.c.Tx([]byte{d.writeOp, reg, value}, nil); err != nil {
		return fmt.Errorf("mcp23s17: writing register %#02x: %w", reg, err)
	}
	return nil
}

// readRegister issues one 3-byte transfer frame and returns the third
// response byte. Callers must hold d.mu.
func (d *Dev) readRegister(reg byte) (byte, error) {
	rx := make([]byte, 3)
	// The trailing 0x00 is filler clocked out while the chip answers.
	if err := d.c.Tx([]byte{d.readOp, reg, 0x00}, rx); err != nil {
		return 0, fmt.Errorf("mcp23s17: reading register %#02x: %w", reg, err)
	}
	return rx[2], nil
}

func (d *Dev) writeIOCON(value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regIOCON, value)
}

// commit pushes one shadow byte to the chip.
func (d *Dev) commit(reg byte, shadow *byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(reg, *shadow)
}

// WriteIODIRA commits the cached port A direction byte.
func (d *Dev) WriteIODIRA() error { return d.commit(regIODIRA, &d.regs.iodir[0]) }

// WriteIODIRB commits the cached port B direction byte.
func (d *Dev) WriteIODIRB() error { return d.commit(regIODIRB, &d.regs.iodir[1]) }

// WriteIPOLA commits the cached port A input polarity byte.
func (d *Dev) WriteIPOLA() error { return d.commit(regIPOLA, &d.regs.ipol[0]) }

// WriteIPOLB commits the cached port B input polarity byte.
func (d *Dev) WriteIPOLB() error { return d.commit(regIPOLB, &d.regs.ipol[1]) }

// WriteGPINTENA commits the cached port A interrupt enable byte.
func (d *Dev) WriteGPINTENA() error { return d.commit(regGPINTENA, &d.regs.gpinten[0]) }

// WriteGPINTENB commits the cached port B interrupt enable byte.
func (d *Dev) WriteGPINTENB() error { return d.commit(regGPINTENB, &d.regs.gpinten[1]) }

// WriteDEFVALA commits the cached port A default comparison byte.
func (d *Dev) WriteDEFVALA() error { return d.commit(regDEFVALA, &d.regs.defval[0]) }

// WriteDEFVALB commits the cached port B default comparison byte.
func (d *Dev) WriteDEFVALB() error { return d.commit(regDEFVALB, &d.regs.defval[1]) }

// WriteINTCONA commits the cached port A interrupt mode byte.
func (d *Dev) WriteINTCONA() error { return d.commit(regINTCONA, &d.regs.intcon[0]) }

// WriteINTCONB commits the cached port B interrupt mode byte.
func (d *Dev) WriteINTCONB() error { return d.commit(regINTCONB, &d.regs.intcon[1]) }

// WriteGPPUA commits the cached port A pull-up byte.
func (d *Dev) WriteGPPUA() error { return d.commit(regGPPUA, &d.regs.gppu[0]) }

// WriteGPPUB commits the cached port B pull-up byte.
func (d *Dev) WriteGPPUB() error { return d.commit(regGPPUB, &d.regs.gppu[1]) }

// WriteOLATA commits the cached port A output latch byte.
func (d *Dev) WriteOLATA() error { return d.commit(regOLATA, &d.regs.olat[0]) }

// WriteOLATB commits the cached port B output latch byte.
func (d *Dev) WriteOLATB() error { return d.commit(regOLATB, &d.regs.olat[1]) }

// readGPIO reads a live port value and refreshes the input shadow byte.
func (d *Dev) readGPIO(portIndex int) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readGPIOLocked(portIndex)
}

func (d *Dev) readGPIOLocked(portIndex int) (byte, error) {
	reg := byte(regGPIOA + portIndex)
	v, err := d.readRegister(reg)
	if err != nil {
		return 0, err
	}
	d.regs.input[portIndex] = v
	return v, nil
}

// ReadGPIOA reads the live value of port A and updates the cached input
// byte consulted by PinView.Get.
func (d *Dev) ReadGPIOA() (byte, error) { return d.readGPIO(0) }

// ReadGPIOB reads the live value of port B and updates the cached input
// byte consulted by PinView.Get.
func (d *Dev) ReadGPIOB() (byte, error) { return d.readGPIO(1) }

func (d *Dev) readDiagnostic(reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(reg)
}

// ReadGPINTENA reads back the port A interrupt enable register from the
// chip. Diagnostic; the shadow byte is not touched.
func (d *Dev) ReadGPINTENA() (byte, error) { return d.readDiagnostic(regGPINTENA) }

// ReadGPINTENB reads back the port B interrupt enable register from the
// chip. Diagnostic; the shadow byte is not touched.
func (d *Dev) ReadGPINTENB() (byte, error) { return d.readDiagnostic(regGPINTENB) }

// ReadIOCON reads the device configuration register.
func (d *Dev) ReadIOCON() (byte, error) { return d.readDiagnostic(regIOCON) }

// ConfigureAllPinsAsInterruptInputs sets all 16 pins to pulled-up
// interrupt-enabled inputs in interrupt-on-change mode and commits the
// affected register pairs. It finishes by reading both ports once to
// discharge any interrupt latched during power-up or configuration;
// without those reads the chip may hold its interrupt line asserted and
// the first real interrupt would never fire.
func (d *Dev) ConfigureAllPinsAsInterruptInputs() error {
	for _, pv := range d.PinViews() {
		pv.SetAsInput()
		pv.EnablePullUp()
		pv.ToInterruptChangeMode()
		pv.EnableInterrupt()
	}
	commits := []func() error{
		d.WriteIODIRA, d.WriteIODIRB,
		d.WriteGPPUA, d.WriteGPPUB,
		d.WriteINTCONA, d.WriteINTCONB,
		d.WriteGPINTENA, d.WriteGPINTENB,
	}
	for _, commit := range commits {
		if err := commit(); err != nil {
			return err
		}
	}
	if _, err := d.ReadGPIOA(); err != nil {
		return err
	}
	_, err := d.ReadGPIOB()
	return err
}

// Halt stops the interrupt goroutines. The Dev must not be used
// afterwards. Halt does not reconfigure the chip.
func (d *Dev) Halt() error {
	d.halt.Do(func() {
		close(d.done)
		if d.intA != nil {
			_ = d.intA.Halt()
		}
		if d.intB != nil && d.intB != d.intA {
			_ = d.intB.Halt()
		}
	})
	return nil
}

// String returns the chip name and hardware address.
func (d *Dev) String() string {
	return fmt.Sprintf("MCP23S17_%d", d.hwAddr)
}
