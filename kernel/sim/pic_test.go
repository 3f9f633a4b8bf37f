// SPDX-License-Identifier: Unlicense OR MIT

package sim

import "testing"

func programPIC(t *testing.T, p *DualPIC) {
	t.Helper()
	cmd1, data1 := picPort{c: &p.Primary}, picPort{c: &p.Primary, data: true}
	cmd2, data2 := picPort{c: &p.Secondary}, picPort{c: &p.Secondary, data: true}
	cmd1.Write(0x11)
	cmd2.Write(0x11)
	data1.Write(0x20)
	data2.Write(0x28)
	data1.Write(0x04)
	data2.Write(0x02)
	data1.Write(0x01)
	data2.Write(0x01)
	data1.Write(0x00)
	data2.Write(0x00)
	if p.Primary.initStage != 0 || p.Secondary.initStage != 0 {
		t.Fatalf("initialization incomplete: %d, %d", p.Primary.initStage, p.Secondary.initStage)
	}
}

func TestDualPICInitialization(t *testing.T) {
	p := newDualPIC()
	if _, ok := p.acknowledge(); ok {
		t.Fatal("interrupt pending at power on")
	}
	programPIC(t, p)
	if a, b := p.Offsets(); a != 0x20 || b != 0x28 {
		t.Fatalf("offsets = %#x, %#x", a, b)
	}
	p.raise(0)
	vec, ok := p.acknowledge()
	if !ok || vec != 0x20 {
		t.Fatalf("vector = %#x, %v, want 0x20", vec, ok)
	}
}

func TestDualPICCascade(t *testing.T) {
	p := newDualPIC()
	programPIC(t, p)
	p.raise(12)
	vec, ok := p.acknowledge()
	if !ok || vec != 0x2c {
		t.Fatalf("vector = %#x, %v, want 0x2c", vec, ok)
	}
	if a, b := p.InService(); a != 1<<2 || b != 1<<4 {
		t.Fatalf("in service = %#x, %#x", a, b)
	}
	p.Secondary.writeCommand(0x20)
	p.Primary.writeCommand(0x20)
	if a, b := p.InService(); a != 0 || b != 0 {
		t.Fatalf("in service after EOI = %#x, %#x", a, b)
	}
	if p.Primary.EOIs != 1 || p.Secondary.EOIs != 1 {
		t.Fatalf("EOIs = %d, %d", p.Primary.EOIs, p.Secondary.EOIs)
	}
}

func TestDualPICPriority(t *testing.T) {
	p := newDualPIC()
	programPIC(t, p)
	p.raise(1)
	if vec, _ := p.acknowledge(); vec != 0x21 {
		t.Fatalf("vector = %#x, want 0x21", vec)
	}
	// A lower priority line waits for the EOI.
	p.raise(3)
	if _, ok := p.acknowledge(); ok {
		t.Fatal("lower priority line delivered while line 1 in service")
	}
	// A higher priority line nests.
	p.raise(0)
	if vec, _ := p.acknowledge(); vec != 0x20 {
		t.Fatalf("vector = %#x, want 0x20", vec)
	}
	p.Primary.writeCommand(0x20)
	p.Primary.writeCommand(0x20)
	if vec, _ := p.acknowledge(); vec != 0x23 {
		t.Fatalf("vector = %#x, want 0x23", vec)
	}
}

func TestDualPICMask(t *testing.T) {
	p := newDualPIC()
	programPIC(t, p)
	picPort{c: &p.Primary, data: true}.Write(0xfe)
	p.raise(1)
	if _, ok := p.acknowledge(); ok {
		t.Fatal("masked line delivered")
	}
	picPort{c: &p.Primary, data: true}.Write(0xfc)
	if vec, ok := p.acknowledge(); !ok || vec != 0x21 {
		t.Fatalf("vector = %#x, %v, want 0x21", vec, ok)
	}
}
