// SPDX-License-Identifier: Unlicense OR MIT

// Package kernel implements the trap and interrupt core of the tlenek
// kernel: descriptor tables, the interrupt vector table and its
// handlers, the chained 8259 interrupt controllers, the PS/2 scancode
// decoder and the debug exception classifier.
//
// Hardware is reached only through a Machine. The Bare machine drives
// the processor this code runs on; package sim provides a host model
// of the same hardware.
package kernel

const pageSize = 4096

// kernError is an error type usable in kernel code.
type kernError string

const (
	errPICOffsets       = kernError("kernel: secondary PIC offset must equal primary+8, primary must be a multiple of 8 in [32, 240]")
	errUnboundVector    = kernError("kernel: supported vector has no handler")
	errDoubleFaultStack = kernError("kernel: double fault is not bound to the reserved interrupt stack")
	errStackShared      = kernError("kernel: reserved interrupt stack claimed by another vector")
	errAlreadyLoaded    = kernError("kernel: descriptor tables already loaded")
	errNotLoaded        = kernError("kernel: descriptor tables not loaded")
	errNoEntryPoint     = kernError("kernel: no entry point for vector")
	errPITFrequency     = kernError("kernel: timer frequency out of range")
	errStackIndex       = kernError("kernel: interrupt stack index out of range")
)

//go:nosplit
func (k kernError) Error() string {
	return string(k)
}

// ControlHandling selects how the keyboard decoder treats letters
// typed while a control key is held.
type ControlHandling uint8

const (
	// ControlIgnore decodes ctrl+letter as the plain letter.
	ControlIgnore ControlHandling = iota
	// ControlMapLetters decodes ctrl+A..ctrl+Z as U+0001..U+001A.
	ControlMapLetters
)

// Config holds the tunables of a Subsystem.
type Config struct {
	// PrimaryOffset and SecondaryOffset are the first vectors of the
	// two 8259 controllers. SecondaryOffset must equal
	// PrimaryOffset+8.
	PrimaryOffset   uint8
	SecondaryOffset uint8

	// Debug enables fault reports. Traps and fatal exceptions are
	// reported regardless.
	Debug bool

	// FaultRepeatLimit is the number of consecutive faults of the
	// same vector at the same instruction after which the kernel
	// stops resuming and halts. Zero resumes forever.
	FaultRepeatLimit int

	// TimerFrequency programs PIT channel 0, in Hz. Zero leaves the
	// power-on divisor of 65536 (about 18.2 Hz).
	TimerFrequency uint32

	Control ControlHandling
}

// DefaultConfig returns the configuration the kernel boots with.
func DefaultConfig() Config {
	return Config{
		PrimaryOffset:    32,
		SecondaryOffset:  32 + 8,
		Debug:            debugBuild,
		FaultRepeatLimit: 16,
	}
}

// stack is statically allocated stack memory.
type stack [5 * pageSize]byte
