// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Port is an 8-bit I/O port.
type Port interface {
	Read() uint8
	Write(v uint8)
}

// Register is a 64-bit system register.
type Register interface {
	Read() uint64
	Write(v uint64)
}

// RegisterID names the system registers the trap core touches.
type RegisterID uint8

const (
	// CR2 holds the linear address of the last page fault.
	CR2 RegisterID = iota
	// DR6 is the debug status register.
	DR6
	// DR7 is the debug control register.
	DR7
)

// Dispatcher receives every vector delivered through a loaded
// interrupt descriptor table.
type Dispatcher interface {
	Dispatch(f *TrapFrame)
}

// Machine is the hardware boundary of the trap core. Each method maps
// to a single privileged instruction or register access; no address
// arithmetic happens outside the implementation.
type Machine interface {
	Port(addr uint16) Port
	Register(id RegisterID) Register

	// LoadGDT loads g into the descriptor table register.
	LoadGDT(g *GDT)
	// SetCodeSegment reloads CS.
	SetCodeSegment(sel Selector)
	// LoadTaskRegister loads the task register.
	LoadTaskRegister(sel Selector)
	// LoadIDT loads t into the interrupt descriptor table register.
	// Vectors delivered through t are passed to d.
	LoadIDT(t *IDT, d Dispatcher)
	// EntryPoint returns the address of the low-level entry routine
	// for vector v, or 0 if none is available.
	EntryPoint(v Vector) uintptr

	InterruptsEnabled() bool
	EnableInterrupts()
	DisableInterrupts()
	// Halt stops the processor until the next interrupt.
	Halt()
}
