// SPDX-License-Identifier: Unlicense OR MIT

package kernel

const (
	numEntries    = 48
	numIRQEntries = numEntries - int(FirstAvailable)
)

// trapContext is the stack layout built by the entry routines and
// trapCommon, lowest address first.
type trapContext struct {
	r15, r14, r13, r12, r11, r10, r9, r8 uint64
	di, si, bp, bx, dx, cx, ax           uint64

	entry uint64
	code  uint64

	// Pushed by the processor.
	rip    uint64
	cs     uint64
	rflags uint64
	rsp    uint64
	ss     uint64
}

var (
	// active receives every vector delivered through the loaded
	// IDT.
	active Dispatcher

	// entryVectors maps hardware entries to the vector they were
	// assigned to.
	entryVectors [numIRQEntries]Vector
	nextIRQEntry int
)

// entryPoint returns the entry routine for v. Exception vectors have
// fixed routines; other vectors are assigned one of the hardware
// entries on first use.
//
//go:nosplit
func entryPoint(v Vector) uintptr {
	table := entryPoints()
	if v < FirstAvailable {
		return table[v]
	}
	for e := 0; e < nextIRQEntry; e++ {
		if entryVectors[e] == v {
			return table[int(FirstAvailable)+e]
		}
	}
	if nextIRQEntry == numIRQEntries {
		return 0
	}
	e := nextIRQEntry
	nextIRQEntry++
	entryVectors[e] = v
	return table[int(FirstAvailable)+e]
}

// dispatchTrap is called by trapCommon.
//
//go:nosplit
func dispatchTrap(ctx *trapContext) {
	v := Vector(ctx.entry)
	if ctx.entry >= uint64(FirstAvailable) {
		v = entryVectors[ctx.entry-uint64(FirstAvailable)]
	}
	f := TrapFrame{
		Vector:    v,
		ErrorCode: ctx.code,
		RIP:       ctx.rip,
		CS:        ctx.cs,
		RFLAGS:    ctx.rflags,
		RSP:       ctx.rsp,
		SS:        ctx.ss,
	}
	if active == nil {
		halt()
		return
	}
	active.Dispatch(&f)
}

func entryPoints() *[numEntries]uintptr
