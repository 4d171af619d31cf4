// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Empirically tuned knobs for the interrupt reassertion workaround, see
// Dev.serviceInterrupts. Change them before constructing devices if your
// hardware needs different values.
var (
	// InterruptReassertRetries is how many extra service cycles are
	// attempted while a tied interrupt line stays asserted.
	InterruptReassertRetries = 1
	// InterruptReassertDelay is the pause between those cycles.
	InterruptReassertDelay = 10 * time.Millisecond
)

// InterruptListener receives interrupt notifications. capturedValue is
// the level the pin had at the moment the chip latched the interrupt,
// with input polarity inversion already applied by the chip.
//
// Listeners are tracked by identity: the same value cannot be registered
// twice on one registry. The concrete type must be comparable; use
// ListenerFunc to register a plain function.
type InterruptListener interface {
	OnInterrupt(capturedValue bool, pin Pin)
}

// ListenerFunc wraps a function into an InterruptListener. Each call
// returns a distinct listener identity, so keep the returned value
// around if you intend to remove it later.
func ListenerFunc(f func(capturedValue bool, pin Pin)) InterruptListener {
	return &listenerFunc{f: f}
}

type listenerFunc struct {
	f func(bool, Pin)
}

func (l *listenerFunc) OnInterrupt(capturedValue bool, pin Pin) {
	l.f(capturedValue, pin)
}

// listenerSet is an identity-keyed set of interrupt listeners. The lock
// covers mutation and dispatch iteration, so add/remove cannot race an
// in-flight dispatch.
type listenerSet struct {
	mu sync.Mutex
	m  map[InterruptListener]struct{}
}

func (s *listenerSet) add(l InterruptListener) error {
	if l == nil {
		return ErrNilListener
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[l]; ok {
		return ErrListenerRegistered
	}
	if s.m == nil {
		s.m = make(map[InterruptListener]struct{})
	}
	s.m[l] = struct{}{}
	return nil
}

func (s *listenerSet) remove(l InterruptListener) error {
	if l == nil {
		return ErrNilListener
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[l]; !ok {
		return ErrListenerNotRegistered
	}
	delete(s.m, l)
	return nil
}

func (s *listenerSet) dispatch(capturedValue bool, pin Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for l := range s.m {
		l.OnInterrupt(capturedValue, pin)
	}
}

// attachInterruptOnLow configures the pin for falling edge detection and
// starts a goroutine that runs handler every time the line goes low. The
// chip's interrupt outputs are active low; rising edges are ignored.
//
// The goroutine runs until Halt. Errors on this path cannot be returned
// to anyone, so they are logged and the event dropped; the goroutine
// itself never dies on a transport error.
func (d *Dev) attachInterruptOnLow(p gpio.PinIn, handler func()) error {
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("mcp23s17: configuring interrupt pin %s: %w", p, err)
	}
	go func() {
		for {
			ok := p.WaitForEdge(-1)
			select {
			case <-d.done:
				return
			default:
			}
			if ok && p.Read() == gpio.Low {
				handler()
			}
		}
	}()
	return nil
}

func (d *Dev) handlePortAInterrupt() {
	d.servicePort(0)
}

func (d *Dev) handlePortBInterrupt() {
	d.servicePort(1)
}

// serviceInterrupts handles one assertion of a tied interrupt line by
// servicing both ports.
//
// For devices built by NewMultipleWithTiedInterrupts it additionally
// works around chips that fail to release the line on the first
// acknowledgment read: if the line is still low after servicing, the
// cycle is repeated up to InterruptReassertRetries times with
// InterruptReassertDelay in between. This is a hack; the counts were
// found by experiment, not derived. Exceeding the bound is logged and
// the line left as-is.
func (d *Dev) serviceInterrupts() {
	for attempt := 0; ; attempt++ {
		d.servicePort(0)
		d.servicePort(1)
		if !d.checkInput {
			return
		}
		if d.intA.Read() != gpio.Low {
			return
		}
		if attempt >= InterruptReassertRetries {
			log.Printf("mcp23s17: %s: interrupt line still asserted after %d service cycles", d, attempt+1)
			return
		}
		time.Sleep(InterruptReassertDelay)
	}
}

// servicePort reads the interrupt state of one port, decodes which pins
// fired and relays the captured values to the listeners.
//
// INTF is read before INTCAP: reading INTCAP (or GPIO) acknowledges the
// interrupt and clears INTF, so the order matters.
func (d *Dev) servicePort(portIndex int) {
	intf, intcap, err := d.readInterruptState(portIndex)
	if err != nil {
		// No caller to propagate to on the interrupt goroutine; log and
		// drop, per the documented policy.
		log.Printf("mcp23s17: %s: servicing port %d interrupt: %v", d, portIndex, err)
		return
	}
	d.dispatchInterrupts(portIndex, intf, intcap)
}

func (d *Dev) readInterruptState(portIndex int) (intf, intcap byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	intf, err = d.readRegister(byte(regINTFA + portIndex))
	if err != nil {
		return 0, 0, err
	}
	// The INTCAP read doubles as the acknowledgment that releases the
	// interrupt line, so it happens even when no flag is set.
	intcap, err = d.readRegister(byte(regINTCAPA + portIndex))
	if err != nil {
		return 0, 0, err
	}
	if d.checkInput && intf != 0 {
		// A glitch short enough to have self-cleared by now was noise,
		// not a real edge. Drop every flagged bit whose captured value
		// no longer matches the live port value.
		var now byte
		now, err = d.readGPIOLocked(portIndex)
		if err != nil {
			return 0, 0, err
		}
		intf &^= intcap ^ now
	}
	return intf, intcap, nil
}

// dispatchInterrupts invokes listeners for every flagged bit in
// ascending bit order: the device's global listeners first, then the
// pin's own. Must be called without d.mu held, listeners are free to
// call back into the device.
func (d *Dev) dispatchInterrupts(portIndex int, intf, intcap byte) {
	for _, pin := range portPins[portIndex] {
		if !pin.bitIn(intf) {
			continue
		}
		capturedValue := pin.bitIn(intcap)
		d.global.dispatch(capturedValue, pin)
		d.PinView(pin).listeners.dispatch(capturedValue, pin)
	}
}
