// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import "unsafe"

// Types and code for setting up processor segments and the task
// state structure. Segmenting and task switching is largely disabled
// in 64-bit mode, but a GDT and a TSS are nevertheless required: the
// TSS carries the interrupt stack table.

// segmentDescriptor represents a 64-bit segment descriptor.
// Uses uint64 type to force 8-byte alignment.
type segmentDescriptor uint64

// Selector is a segment selector: a descriptor table index shifted
// left by 3, or'ed with the requested privilege level.
type Selector uint16

// Segment selector indices. A 64-bit TSS descriptor spans two
// entries, with the high 32 bits of the address in the second.
const (
	// Mandatory null selector.
	_ = iota
	// Ring 0 code (64-bit).
	segmentCode0
	// TSS.
	segmentTSS0
	// TSS high address.
	segmentTSS0High
	// End sentinel for determining limit.
	segmentEnd
)

// GDT is the global descriptor table. It is never touched after it
// is loaded.
type GDT struct {
	entries [segmentEnd]segmentDescriptor
	tss     *TSS
}

// TSS is the amd64 task state structure. Hardware task switching is
// not available in 64-bit mode, but a TSS structure must be defined
// to specify interrupt and ring 0 stacks.
type TSS [26]uint32

type segmentFlags uint32
type privLevel uint32

const ring0 privLevel = 0

const (
	segFlagAccess segmentFlags = 1 << 8
	segFlagCode   segmentFlags = 1 << 11
	// Zero for system descriptors, one for code and data.
	segFlagSystem  segmentFlags = 1 << 12
	segFlagPresent segmentFlags = 1 << 15
	segFlagLong    segmentFlags = 1 << 21
)

// Interrupt stack numbers are 1-based; 0 in a gate means "no switch".
const (
	// DoubleFaultStack is the interrupt stack reserved for the double
	// fault handler. It is the first slot of the interrupt stack
	// table and no other vector may use it.
	DoubleFaultStack = 1

	numInterruptStacks = 7
)

// Stack for double faults. It is never used by anything else, so it
// is valid even when the fault was caused by exhausting the kernel
// stack.
var doubleFaultStack stack

// ReservedStack returns the bounds of the double fault stack.
func ReservedStack() (lo, hi uintptr) {
	lo = uintptr(unsafe.Pointer(&doubleFaultStack[0]))
	return lo, lo + unsafe.Sizeof(doubleFaultStack)
}

// newGDT builds a descriptor table with a ring 0 code segment and a
// TSS descriptor for t.
//
//go:nosplit
func newGDT(t *TSS) *GDT {
	g := &GDT{tss: t}
	g.entries[segmentCode0] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagCode|segFlagLong, ring0)
	tssAddr := uintptr(unsafe.Pointer(t))
	tssLimit := uint32(unsafe.Sizeof(*t) - 1)
	g.entries[segmentTSS0] = newSegmentDescriptor(uint32(tssAddr), tssLimit, segFlagAccess|segFlagCode, ring0)
	g.entries[segmentTSS0High] = segmentDescriptor(uint64(tssAddr) >> 32)
	return g
}

// newTSS returns a TSS whose interrupt stack DoubleFaultStack points to
// the top of the reserved stack. All I/O ports are blocked for ring 3.
//
//go:nosplit
func newTSS() (*TSS, error) {
	t := new(TSS)
	if err := t.setISP(DoubleFaultStack, uint64(doubleFaultStack.top())); err != nil {
		return nil, err
	}
	t.setIOPerm(uint16(unsafe.Sizeof(*t)))
	return t, nil
}

// CodeSelector returns the ring 0 code segment selector.
func (g *GDT) CodeSelector() Selector {
	return Selector(segmentCode0<<3 | ring0)
}

// TSSSelector returns the task state segment selector.
func (g *GDT) TSSSelector() Selector {
	return Selector(segmentTSS0<<3 | ring0)
}

// Limit returns the GDT limit as loaded into the GDT register.
func (g *GDT) Limit() uint16 {
	return uint16(unsafe.Sizeof(g.entries) - 1)
}

// Descriptor returns the raw descriptor selected by sel.
func (g *GDT) Descriptor(sel Selector) (uint64, bool) {
	idx := int(sel >> 3)
	if idx >= len(g.entries) {
		return 0, false
	}
	return uint64(g.entries[idx]), true
}

// TSS returns the task state structure described by the table.
func (g *GDT) TSS() *TSS {
	return g.tss
}

// setISP sets the address for the interrupt stack
// number idx (1-based).
//
//go:nosplit
func (t *TSS) setISP(idx int, rsp uint64) error {
	if idx < 1 || idx > numInterruptStacks {
		return errStackIndex
	}
	t[7+idx*2] = uint32(rsp)
	t[7+idx*2+1] = uint32(rsp >> 32)
	return nil
}

// InterruptStack returns the stack top of interrupt stack idx
// (1-based), or 0 if idx is out of range or unset.
func (t *TSS) InterruptStack(idx int) uint64 {
	if idx < 1 || idx > numInterruptStacks {
		return 0
	}
	return uint64(t[7+idx*2+1])<<32 | uint64(t[7+idx*2])
}

//go:nosplit
func (t *TSS) setIOPerm(addr uint16) {
	t[25] = uint32(addr) << 16
}

//go:nosplit
func newSegmentDescriptor(base uint32, limit uint32, flags segmentFlags, level privLevel) segmentDescriptor {
	flags |= segFlagPresent
	w0 := base<<16 | limit&0xffff
	w1 := base&0xff000000 | limit&0xf0000 | uint32(flags) | uint32(level)<<13 | (base>>16)&0xff
	return segmentDescriptor(uint64(w1)<<32 | uint64(w0))
}

// IsLongCode reports whether the raw descriptor d is a present 64-bit
// code segment.
func IsLongCode(d uint64) bool {
	w1 := segmentFlags(d >> 32)
	const want = segFlagPresent | segFlagSystem | segFlagCode | segFlagLong
	return w1&want == want
}

// IsAvailableTSS reports whether the raw descriptor d is a present,
// available 64-bit TSS.
func IsAvailableTSS(d uint64) bool {
	w1 := uint32(d >> 32)
	const typeMask = 0xf << 8
	return w1&uint32(segFlagPresent) != 0 && w1&uint32(segFlagSystem) == 0 && w1&typeMask == 0x9<<8
}

//go:nosplit
func (s *stack) top() uintptr {
	stackTop := uintptr(unsafe.Pointer(&s[0])) + unsafe.Sizeof(*s)
	// Align to 16 bytes.
	return stackTop &^ 0xf
}
