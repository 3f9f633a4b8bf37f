// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import "unsafe"

const _FLAG_IF = 1 << 9

// Bare is the Machine of the processor the kernel runs on. Its
// methods execute privileged instructions and must only be called in
// ring 0.
type Bare struct{}

// ioPort is an I/O port of the processor.
type ioPort uint16

// sysRegister is a control or debug register of the processor.
type sysRegister RegisterID

// descriptorPointer is the operand of LGDT and LIDT: a 16-bit limit
// followed by a 64-bit base address.
type descriptorPointer [5]uint16

//go:nosplit
func newDescriptorPointer(base uintptr, limit uint16) descriptorPointer {
	return descriptorPointer{
		limit,
		uint16(base),
		uint16(base >> 16),
		uint16(base >> 32),
		uint16(base >> 48),
	}
}

//go:nosplit
func (p ioPort) Read() uint8 {
	return inb(uint16(p))
}

//go:nosplit
func (p ioPort) Write(v uint8) {
	outb(uint16(p), v)
}

//go:nosplit
func (r sysRegister) Read() uint64 {
	switch RegisterID(r) {
	case CR2:
		return readCR2()
	case DR6:
		return readDR6()
	case DR7:
		return readDR7()
	}
	return 0
}

// Write updates the register. CR2 is written by the processor only.
//
//go:nosplit
func (r sysRegister) Write(v uint64) {
	switch RegisterID(r) {
	case DR6:
		writeDR6(v)
	case DR7:
		writeDR7(v)
	}
}

//go:nosplit
func (Bare) Port(addr uint16) Port {
	return ioPort(addr)
}

//go:nosplit
func (Bare) Register(id RegisterID) Register {
	return sysRegister(id)
}

//go:nosplit
func (Bare) LoadGDT(g *GDT) {
	p := newDescriptorPointer(uintptr(unsafe.Pointer(&g.entries[0])), g.Limit())
	lgdt(&p)
}

//go:nosplit
func (Bare) SetCodeSegment(sel Selector) {
	setCS(uint64(sel))
}

//go:nosplit
func (Bare) LoadTaskRegister(sel Selector) {
	ltr(uint16(sel))
}

//go:nosplit
func (Bare) LoadIDT(t *IDT, d Dispatcher) {
	active = d
	p := newDescriptorPointer(uintptr(unsafe.Pointer(t)), uint16(unsafe.Sizeof(*t)-1))
	lidt(&p)
}

//go:nosplit
func (Bare) EntryPoint(v Vector) uintptr {
	return entryPoint(v)
}

//go:nosplit
func (Bare) InterruptsEnabled() bool {
	return readFlags()&_FLAG_IF != 0
}

//go:nosplit
func (Bare) EnableInterrupts() {
	sti()
}

//go:nosplit
func (Bare) DisableInterrupts() {
	cli()
}

//go:nosplit
func (Bare) Halt() {
	halt()
}

// Breakpoint executes INT3.
//
//go:nosplit
func (Bare) Breakpoint() {
	breakpoint()
}

func halt()
func breakpoint()
func cli()
func sti()
func readFlags() uint64
func outb(port uint16, b uint8)
func inb(port uint16) uint8
func lgdt(p *descriptorPointer)
func lidt(p *descriptorPointer)
func ltr(sel uint16)
func setCS(sel uint64)
func readCR2() uint64
func readDR6() uint64
func writeDR6(v uint64)
func readDR7() uint64
func writeDR7(v uint64)
