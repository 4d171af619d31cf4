// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

// PinView is the per-pin facade over one device's register shadow.
// Obtain one with Dev.PinView; exactly one view exists per (Dev, Pin)
// pair.
//
// Every setter mutates the local shadow only. Nothing reaches the chip
// until the corresponding Dev.Write* commit is called, so changes to
// many pins of one port cost a single SPI transaction.
type PinView struct {
	dev *Dev
	pin Pin

	listeners listenerSet
}

// Pin returns the pin this view refers to.
func (p *PinView) Pin() Pin {
	return p.pin
}

func (p *PinView) getShadowBit(pair *[2]byte) bool {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return p.pin.bitIn(pair[p.pin.portIndex()])
}

func (p *PinView) setShadowBit(pair *[2]byte, value bool) {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	i := p.pin.portIndex()
	pair[i] = p.pin.applyBit(pair[i], value)
}

// IsInput reports whether the pin is configured as an input.
func (p *PinView) IsInput() bool {
	return p.getShadowBit(&p.dev.regs.iodir)
}

// IsOutput reports whether the pin is configured as an output.
func (p *PinView) IsOutput() bool {
	return !p.IsInput()
}

// SetAsInput configures the pin as an input. Commit with WriteIODIRA or
// WriteIODIRB.
func (p *PinView) SetAsInput() {
	p.setShadowBit(&p.dev.regs.iodir, true)
}

// SetAsOutput configures the pin as an output. Commit with WriteIODIRA
// or WriteIODIRB.
func (p *PinView) SetAsOutput() {
	p.setShadowBit(&p.dev.regs.iodir, false)
}

// Set sets the value driven on the pin when it is an output. Commit with
// WriteOLATA or WriteOLATB.
func (p *PinView) Set(value bool) {
	p.setShadowBit(&p.dev.regs.olat, value)
}

// Get returns the output latch shadow if the pin is configured as an
// output, else the pin's bit of the last read of its port's input
// register. It never touches the hardware; for inputs the result is as
// stale as the last ReadGPIOA/ReadGPIOB call. Use GetFromRead for a
// fresh value.
func (p *PinView) Get() bool {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	i := p.pin.portIndex()
	if !p.pin.bitIn(p.dev.regs.iodir[i]) {
		return p.pin.bitIn(p.dev.regs.olat[i])
	}
	return p.pin.bitIn(p.dev.regs.input[i])
}

// GetFromRead reads the pin's port input register from the chip and
// returns this pin's bit, refreshing the cached input byte as a side
// effect. It returns ErrPinIsOutput if the pin is currently configured
// as an output.
func (p *PinView) GetFromRead() (bool, error) {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	i := p.pin.portIndex()
	if !p.pin.bitIn(p.dev.regs.iodir[i]) {
		return false, ErrPinIsOutput
	}
	v, err := p.dev.readGPIOLocked(i)
	if err != nil {
		return false, err
	}
	return p.pin.bitIn(v), nil
}

// IsInputInverted reports whether the pin's input polarity is inverted.
func (p *PinView) IsInputInverted() bool {
	return p.getShadowBit(&p.dev.regs.ipol)
}

// InvertInput makes the pin report the opposite of its physical level.
// Commit with WriteIPOLA or WriteIPOLB.
func (p *PinView) InvertInput() {
	p.setShadowBit(&p.dev.regs.ipol, true)
}

// UninvertInput restores normal input polarity. Commit with WriteIPOLA
// or WriteIPOLB.
func (p *PinView) UninvertInput() {
	p.setShadowBit(&p.dev.regs.ipol, false)
}

// IsInterruptEnabled reports whether interrupt-on-change is enabled for
// the pin.
func (p *PinView) IsInterruptEnabled() bool {
	return p.getShadowBit(&p.dev.regs.gpinten)
}

// EnableInterrupt enables interrupt-on-change for the pin. Commit with
// WriteGPINTENA or WriteGPINTENB.
func (p *PinView) EnableInterrupt() {
	p.setShadowBit(&p.dev.regs.gpinten, true)
}

// DisableInterrupt disables interrupt-on-change for the pin. Commit with
// WriteGPINTENA or WriteGPINTENB.
func (p *PinView) DisableInterrupt() {
	p.setShadowBit(&p.dev.regs.gpinten, false)
}

// GetDefaultComparisonValue returns the pin's DEFVAL shadow bit, the
// value compared against in comparison interrupt mode.
func (p *PinView) GetDefaultComparisonValue() bool {
	return p.getShadowBit(&p.dev.regs.defval)
}

// SetDefaultComparisonValue sets the value the pin is compared against
// in comparison interrupt mode; an interrupt fires while the pin differs
// from it. Commit with WriteDEFVALA or WriteDEFVALB.
func (p *PinView) SetDefaultComparisonValue(value bool) {
	p.setShadowBit(&p.dev.regs.defval, value)
}

// IsInterruptComparisonMode reports whether the pin interrupts on
// difference from its default comparison value.
func (p *PinView) IsInterruptComparisonMode() bool {
	return p.getShadowBit(&p.dev.regs.intcon)
}

// IsInterruptChangeMode reports whether the pin interrupts on any
// change.
func (p *PinView) IsInterruptChangeMode() bool {
	return !p.IsInterruptComparisonMode()
}

// ToInterruptComparisonMode makes the pin interrupt on difference from
// its default comparison value. Commit with WriteINTCONA or WriteINTCONB.
func (p *PinView) ToInterruptComparisonMode() {
	p.setShadowBit(&p.dev.regs.intcon, true)
}

// ToInterruptChangeMode makes the pin interrupt on any change. Commit
// with WriteINTCONA or WriteINTCONB.
func (p *PinView) ToInterruptChangeMode() {
	p.setShadowBit(&p.dev.regs.intcon, false)
}

// IsPulledUp reports whether the pin's weak pull-up is enabled.
func (p *PinView) IsPulledUp() bool {
	return p.getShadowBit(&p.dev.regs.gppu)
}

// EnablePullUp enables the pin's weak pull-up. Commit with WriteGPPUA or
// WriteGPPUB.
func (p *PinView) EnablePullUp() {
	p.setShadowBit(&p.dev.regs.gppu, true)
}

// DisablePullUp disables the pin's weak pull-up. Commit with WriteGPPUA
// or WriteGPPUB.
func (p *PinView) DisablePullUp() {
	p.setShadowBit(&p.dev.regs.gppu, false)
}

// AddListener registers a listener invoked whenever this pin raises an
// interrupt. The same listener value cannot be registered twice.
func (p *PinView) AddListener(l InterruptListener) error {
	return p.listeners.add(l)
}

// RemoveListener unregisters a listener previously added with
// AddListener.
func (p *PinView) RemoveListener(l InterruptListener) error {
	return p.listeners.remove(l)
}
