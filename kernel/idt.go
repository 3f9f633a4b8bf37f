// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Gate is a 64-bit interrupt or trap gate. Uses uint64 to force
// 8-byte alignment.
type Gate [2]uint64

// IDT is the interrupt descriptor table. There are 256 interrupts
// available.
type IDT [256]Gate

type gateKind uint32

const (
	// Interrupt gates clear IF on entry.
	interruptGate gateKind = 0xe
	// Trap gates leave IF alone.
	trapGate gateKind = 0xf
)

// install an interrupt handler.
//
//go:nosplit
func (t *IDT) install(v Vector, sel Selector, level privLevel, ist uint8, kind gateKind, pc uintptr) {
	flags := uint32(segFlagPresent)
	w0 := uint32(sel)<<16 | uint32(pc&0xffff)
	w1 := uint32(pc&0xffff0000) | flags | uint32(level)<<13 | uint32(kind)<<8 | uint32(ist&0x7)
	w2 := uint32(uint64(pc) >> 32)
	t[v][0] = uint64(w1)<<32 | uint64(w0)
	t[v][1] = uint64(w2)
}

// Present reports whether the gate is present.
func (g Gate) Present() bool {
	return uint32(g[0]>>32)&uint32(segFlagPresent) != 0
}

// Trap reports whether g is a trap gate rather than an interrupt gate.
func (g Gate) Trap() bool {
	return gateKind(g[0]>>40)&0xf == trapGate
}

// IST returns the interrupt stack number of the gate, 0 for none.
func (g Gate) IST() int {
	return int(g[0]>>32) & 0x7
}

// Selector returns the code segment the handler runs in.
func (g Gate) Selector() Selector {
	return Selector(g[0] >> 16)
}

// Offset returns the handler address.
func (g Gate) Offset() uint64 {
	return g[1]<<32 | (g[0]>>32)&0xffff0000 | g[0]&0xffff
}
