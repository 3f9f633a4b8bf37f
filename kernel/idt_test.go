// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"testing"
	"unsafe"
)

func TestGateEncoding(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		ist  uint8
		kind gateKind
		pc   uintptr
	}{
		{"interrupt", 0x08, 0, interruptGate, 0x0000000000401000},
		{"trap", 0x08, 0, trapGate, 0xffffffff80001234},
		{"interrupt stack", 0x08, DoubleFaultStack, interruptGate, 0x00007fffdeadbeef},
		{"last stack", 0x10, numInterruptStacks, interruptGate, 0x123456789abcdef0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var idt IDT
			idt.install(Breakpoint, tt.sel, ring0, tt.ist, tt.kind, tt.pc)
			g := idt[Breakpoint]
			if !g.Present() {
				t.Fatal("gate not present")
			}
			if got := g.Offset(); got != uint64(tt.pc) {
				t.Errorf("offset = %#x, want %#x", got, tt.pc)
			}
			if got := g.Selector(); got != tt.sel {
				t.Errorf("selector = %#x, want %#x", got, tt.sel)
			}
			if got := g.IST(); got != int(tt.ist) {
				t.Errorf("ist = %d, want %d", got, tt.ist)
			}
			if got := g.Trap(); got != (tt.kind == trapGate) {
				t.Errorf("trap = %v, want %v", got, tt.kind == trapGate)
			}
			// DPL 0.
			if dpl := (g[0] >> 45) & 0x3; dpl != 0 {
				t.Errorf("dpl = %d, want 0", dpl)
			}
			if g[1]>>32 != 0 {
				t.Errorf("reserved bits set: %#x", g[1])
			}
			for v := range idt {
				if Vector(v) != Breakpoint && idt[v].Present() {
					t.Errorf("vector %#x present", v)
				}
			}
		})
	}
}

func TestTSSInterruptStack(t *testing.T) {
	tss, err := newTSS()
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := ReservedStack()
	top := tss.InterruptStack(DoubleFaultStack)
	if top <= uint64(lo) || top > uint64(hi) {
		t.Fatalf("double fault stack top %#x outside [%#x, %#x]", top, lo, hi)
	}
	if top%16 != 0 {
		t.Errorf("stack top %#x not 16-byte aligned", top)
	}
	if hi-lo != 5*pageSize {
		t.Errorf("reserved stack is %d bytes, want %d", hi-lo, 5*pageSize)
	}
	// IST1 occupies the dwords 9 and 10 of the structure.
	if got := uint64(tss[10])<<32 | uint64(tss[9]); got != top {
		t.Errorf("IST1 words = %#x, want %#x", got, top)
	}
	for i := 2; i <= numInterruptStacks; i++ {
		if tss.InterruptStack(i) != 0 {
			t.Errorf("interrupt stack %d set", i)
		}
	}
	if got := tss[25] >> 16; got != uint32(unsafe.Sizeof(*tss)) {
		t.Errorf("I/O map base = %d, want %d", got, unsafe.Sizeof(*tss))
	}
	if unsafe.Sizeof(*tss) != 104 {
		t.Errorf("TSS is %d bytes, want 104", unsafe.Sizeof(*tss))
	}
	for _, idx := range []int{0, numInterruptStacks + 1} {
		if err := tss.setISP(idx, 0x1000); err != errStackIndex {
			t.Errorf("setISP(%d) = %v, want %v", idx, err, errStackIndex)
		}
		if tss.InterruptStack(idx) != 0 {
			t.Errorf("InterruptStack(%d) != 0", idx)
		}
	}
}

func TestGDTDescriptors(t *testing.T) {
	tss, err := newTSS()
	if err != nil {
		t.Fatal(err)
	}
	g := newGDT(tss)

	if got := g.CodeSelector(); got != 0x08 {
		t.Errorf("code selector = %#x, want 0x8", got)
	}
	if got := g.TSSSelector(); got != 0x10 {
		t.Errorf("TSS selector = %#x, want 0x10", got)
	}
	if got := g.Limit(); got != 4*8-1 {
		t.Errorf("limit = %d, want %d", got, 4*8-1)
	}
	if d, _ := g.Descriptor(0); d != 0 {
		t.Errorf("null descriptor = %#x", d)
	}
	code, ok := g.Descriptor(g.CodeSelector())
	if !ok || !IsLongCode(code) {
		t.Errorf("code descriptor %#x is not a long mode code segment", code)
	}
	if IsAvailableTSS(code) {
		t.Errorf("code descriptor %#x is a TSS", code)
	}
	low, ok := g.Descriptor(g.TSSSelector())
	if !ok || !IsAvailableTSS(low) {
		t.Fatalf("TSS descriptor %#x is not an available TSS", low)
	}
	if IsLongCode(low) {
		t.Errorf("TSS descriptor %#x is a code segment", low)
	}
	high, _ := g.Descriptor(g.TSSSelector() + 8)
	base := high<<32 | (low>>32)&0xff000000 | (low>>16)&0xff0000 | (low>>16)&0xffff
	if want := uint64(uintptr(unsafe.Pointer(tss))); base != want {
		t.Errorf("TSS base = %#x, want %#x", base, want)
	}
	if limit := low & 0xffff; limit != 103 {
		t.Errorf("TSS limit = %d, want 103", limit)
	}
	if g.TSS() != tss {
		t.Error("TSS() does not return the described structure")
	}
	if _, ok := g.Descriptor(Selector(segmentEnd << 3)); ok {
		t.Error("descriptor past the end of the table")
	}
}
