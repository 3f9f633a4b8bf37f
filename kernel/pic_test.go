// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"reflect"
	"testing"
)

func TestPICOffsets(t *testing.T) {
	tests := []struct {
		primary, secondary uint8
		ok                 bool
	}{
		{32, 40, true},
		{48, 56, true},
		{240, 248, true},
		{0x08, 0x70, false},
		{24, 32, false},
		{32, 48, false},
		{36, 44, false},
		{248, 0, false},
		{40, 32, false},
	}
	for _, tt := range tests {
		_, err := NewChainedPICs(newFakeMachine(), tt.primary, tt.secondary)
		if got := err == nil; got != tt.ok {
			t.Errorf("NewChainedPICs(%d, %d) = %v, want ok %v", tt.primary, tt.secondary, err, tt.ok)
		}
		if err != nil && err != errPICOffsets {
			t.Errorf("NewChainedPICs(%d, %d) = %v, want %v", tt.primary, tt.secondary, err, errPICOffsets)
		}
	}
}

func TestPICInitialize(t *testing.T) {
	m := newFakeMachine()
	m.port(pic1Data).value = 0xb8
	m.port(pic2Data).value = 0x8e
	pics, err := NewChainedPICs(m, 32, 40)
	if err != nil {
		t.Fatal(err)
	}
	pics.Initialize()

	want := []string{
		"out 0x20 0x11", "out 0xa0 0x11",
		"out 0x21 0x20", "out 0xa1 0x28",
		"out 0x21 0x4", "out 0xa1 0x2",
		"out 0x21 0x1", "out 0xa1 0x1",
		"out 0x21 0xb8", "out 0xa1 0x8e",
	}
	if got := m.writes(0); !reflect.DeepEqual(got, want) {
		t.Fatalf("writes = %q, want %q", got, want)
	}
	// Every initialization word is followed by a wait.
	waits := 0
	for i, e := range m.events {
		if e == "out 0x80 0x0" {
			waits++
			if i == 0 || m.events[i-1] == "out 0x80 0x0" {
				t.Errorf("wait at %d does not follow a write", i)
			}
		}
	}
	if waits != 8 {
		t.Errorf("waits = %d, want 8", waits)
	}
	if p, s := pics.Masks(); p != 0xb8 || s != 0x8e {
		t.Errorf("masks = %#x, %#x, want 0xb8, 0x8e", p, s)
	}
}

func TestPICAcknowledge(t *testing.T) {
	tests := []struct {
		v    Vector
		want []string
	}{
		{32, []string{"out 0x20 0x20"}},
		{39, []string{"out 0x20 0x20"}},
		{40, []string{"out 0xa0 0x20", "out 0x20 0x20"}},
		{47, []string{"out 0xa0 0x20", "out 0x20 0x20"}},
		{31, nil},
		{48, nil},
		{Breakpoint, nil},
	}
	for _, tt := range tests {
		m := newFakeMachine()
		pics, err := NewChainedPICs(m, 32, 40)
		if err != nil {
			t.Fatal(err)
		}
		pics.Acknowledge(tt.v)
		if got := m.writes(0); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Acknowledge(%d) writes %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestPICVector(t *testing.T) {
	pics, err := NewChainedPICs(newFakeMachine(), 48, 56)
	if err != nil {
		t.Fatal(err)
	}
	for irq, want := range map[int]Vector{0: 48, 1: 49, 7: 55, 8: 56, 15: 63} {
		if got := pics.Vector(irq); got != want {
			t.Errorf("Vector(%d) = %d, want %d", irq, got, want)
		}
		if !pics.HandlesInterrupt(want) {
			t.Errorf("HandlesInterrupt(%d) = false", want)
		}
	}
	if pics.HandlesInterrupt(64) || pics.HandlesInterrupt(47) {
		t.Error("HandlesInterrupt true outside the controller blocks")
	}
}

func TestPICDisable(t *testing.T) {
	m := newFakeMachine()
	pics, err := NewChainedPICs(m, 32, 40)
	if err != nil {
		t.Fatal(err)
	}
	pics.Disable()
	want := []string{"out 0x21 0xff", "out 0xa1 0xff"}
	if got := m.writes(0); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
}
