// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23s17

import (
	"errors"
	"sync"
	"testing"
)

// All setters mutate the shadow registers only. The empty playback makes
// any SPI transaction fail the test on Close.
func TestSettersAreCacheOnly(t *testing.T) {
	c, pb := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	pv := dev.PinView(GPB5)

	pv.SetAsOutput()
	if !pv.IsOutput() || pv.IsInput() {
		t.Error("SetAsOutput not reflected")
	}
	pv.SetAsInput()
	if !pv.IsInput() {
		t.Error("SetAsInput not reflected")
	}

	pv.InvertInput()
	if !pv.IsInputInverted() {
		t.Error("InvertInput not reflected")
	}
	pv.UninvertInput()
	if pv.IsInputInverted() {
		t.Error("UninvertInput not reflected")
	}

	pv.EnableInterrupt()
	if !pv.IsInterruptEnabled() {
		t.Error("EnableInterrupt not reflected")
	}
	pv.DisableInterrupt()
	if pv.IsInterruptEnabled() {
		t.Error("DisableInterrupt not reflected")
	}

	pv.SetDefaultComparisonValue(true)
	if !pv.GetDefaultComparisonValue() {
		t.Error("SetDefaultComparisonValue not reflected")
	}

	pv.ToInterruptComparisonMode()
	if !pv.IsInterruptComparisonMode() || pv.IsInterruptChangeMode() {
		t.Error("ToInterruptComparisonMode not reflected")
	}
	pv.ToInterruptChangeMode()
	if !pv.IsInterruptChangeMode() {
		t.Error("ToInterruptChangeMode not reflected")
	}

	pv.EnablePullUp()
	if !pv.IsPulledUp() {
		t.Error("EnablePullUp not reflected")
	}
	pv.DisablePullUp()
	if pv.IsPulledUp() {
		t.Error("DisablePullUp not reflected")
	}

	pv.Set(true)
	if err := pb.Close(); err != nil {
		t.Fatalf("setters touched the bus: %v", err)
	}
}

// A setter for one pin must not disturb its neighbors' bits.
func TestSetterBitIsolation(t *testing.T) {
	c, _ := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, pv := range dev.PinViews() {
		pv.EnablePullUp()
	}
	dev.PinView(GPA4).DisablePullUp()
	for _, pv := range dev.PinViews() {
		want := pv.Pin() != GPA4
		if pv.IsPulledUp() != want {
			t.Errorf("%s: IsPulledUp() = %t, want %t", pv.Pin(), !want, want)
		}
	}
}

func TestGetUsesLatchForOutputs(t *testing.T) {
	c, _ := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	pv := dev.PinView(GPA2)
	pv.SetAsOutput()
	pv.Set(true)
	if !pv.Get() {
		t.Error("output pin: Get() should follow the output latch shadow")
	}
	// As an input the same pin reports the (never read, hence zero)
	// cached input byte instead.
	pv.SetAsInput()
	if pv.Get() {
		t.Error("input pin: Get() should follow the cached input register")
	}
}

func TestPinViewIdentity(t *testing.T) {
	c, _ := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	if dev.PinView(GPA3) != dev.PinView(GPA3) {
		t.Error("PinView must return the same view for the same pin")
	}
	views := dev.PinViews()
	if len(views) != 16 {
		t.Fatalf("PinViews() returned %d views", len(views))
	}
	for i, pv := range views {
		if pv.Pin().Number() != i {
			t.Errorf("views[%d] is %s", i, pv.Pin())
		}
	}
}

// Creation must be idempotent under concurrent access; the interrupt
// goroutine may create a view at the same time as application code.
func TestPinViewConcurrentCreation(t *testing.T) {
	c, _ := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	const goroutines = 8
	var wg sync.WaitGroup
	got := make([]*PinView, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			got[i] = dev.PinView(GPB6)
		}(i)
	}
	wg.Wait()
	for i := 1; i < goroutines; i++ {
		if got[i] != got[0] {
			t.Fatal("concurrent PinView calls returned different views")
		}
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []Pin
}

func (r *recordingListener) OnInterrupt(capturedValue bool, pin Pin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pin)
}

func TestListenerRegistration(t *testing.T) {
	c, _ := playbackConn(t, nil)
	dev, err := New(c, 0)
	if err != nil {
		t.Fatal(err)
	}
	pv := dev.PinView(GPA0)
	l := &recordingListener{}

	if err := pv.AddListener(l); err != nil {
		t.Fatal(err)
	}
	if err := pv.AddListener(l); !errors.Is(err, ErrListenerRegistered) {
		t.Errorf("duplicate AddListener = %v, want ErrListenerRegistered", err)
	}
	if err := pv.RemoveListener(l); err != nil {
		t.Fatal(err)
	}
	if err := pv.RemoveListener(l); !errors.Is(err, ErrListenerNotRegistered) {
		t.Errorf("RemoveListener of unregistered = %v, want ErrListenerNotRegistered", err)
	}
	if err := pv.AddListener(nil); !errors.Is(err, ErrNilListener) {
		t.Errorf("AddListener(nil) = %v, want ErrNilListener", err)
	}

	// A different listener value is a distinct identity even with the
	// same underlying function.
	f := func(bool, Pin) {}
	l1, l2 := ListenerFunc(f), ListenerFunc(f)
	if err := pv.AddListener(l1); err != nil {
		t.Fatal(err)
	}
	if err := pv.AddListener(l2); err != nil {
		t.Fatal(err)
	}

	// Same rules for the device-wide registry.
	if err := dev.AddGlobalListener(l); err != nil {
		t.Fatal(err)
	}
	if err := dev.AddGlobalListener(l); !errors.Is(err, ErrListenerRegistered) {
		t.Errorf("duplicate AddGlobalListener = %v, want ErrListenerRegistered", err)
	}
	if err := dev.RemoveGlobalListener(l2); !errors.Is(err, ErrListenerNotRegistered) {
		t.Errorf("RemoveGlobalListener of unregistered = %v, want ErrListenerNotRegistered", err)
	}
}
