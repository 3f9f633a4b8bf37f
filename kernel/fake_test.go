// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"fmt"
	"strings"
	"testing"
)

// fakeMachine records the hardware operations of the code under test
// as a list of events.
type fakeMachine struct {
	ports   map[uint16]*fakePort
	regs    [3]uint64
	ifFlag  bool
	events  []string
	noEntry map[Vector]bool

	gdt *GDT
	idt *IDT
	d   Dispatcher
}

// parked is the panic value of fakeMachine.Halt.
type parked struct{}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{
		ports:   make(map[uint16]*fakePort),
		noEntry: make(map[Vector]bool),
	}
}

type fakePort struct {
	m     *fakeMachine
	addr  uint16
	value uint8
	queue []uint8
}

func (p *fakePort) Read() uint8 {
	v := p.value
	if len(p.queue) > 0 {
		v, p.queue = p.queue[0], p.queue[1:]
	}
	p.m.events = append(p.m.events, fmt.Sprintf("in %#x", p.addr))
	return v
}

func (p *fakePort) Write(v uint8) {
	p.value = v
	p.m.events = append(p.m.events, fmt.Sprintf("out %#x %#x", p.addr, v))
}

type fakeRegister struct {
	v *uint64
}

func (r fakeRegister) Read() uint64   { return *r.v }
func (r fakeRegister) Write(v uint64) { *r.v = v }

func (m *fakeMachine) port(addr uint16) *fakePort {
	p, ok := m.ports[addr]
	if !ok {
		p = &fakePort{m: m, addr: addr}
		m.ports[addr] = p
	}
	return p
}

func (m *fakeMachine) Port(addr uint16) Port {
	return m.port(addr)
}

func (m *fakeMachine) Register(id RegisterID) Register {
	return fakeRegister{&m.regs[id]}
}

func (m *fakeMachine) LoadGDT(g *GDT) {
	m.gdt = g
	m.events = append(m.events, "lgdt")
}

func (m *fakeMachine) SetCodeSegment(sel Selector) {
	m.events = append(m.events, fmt.Sprintf("cs %#x", uint16(sel)))
}

func (m *fakeMachine) LoadTaskRegister(sel Selector) {
	m.events = append(m.events, fmt.Sprintf("ltr %#x", uint16(sel)))
}

func (m *fakeMachine) LoadIDT(t *IDT, d Dispatcher) {
	m.idt, m.d = t, d
	m.events = append(m.events, "lidt")
}

func (m *fakeMachine) EntryPoint(v Vector) uintptr {
	if m.noEntry[v] {
		return 0
	}
	return 0xffff800000100000 + uintptr(v)*16
}

func (m *fakeMachine) InterruptsEnabled() bool {
	return m.ifFlag
}

func (m *fakeMachine) EnableInterrupts() {
	m.ifFlag = true
	m.events = append(m.events, "sti")
}

func (m *fakeMachine) DisableInterrupts() {
	m.ifFlag = false
	m.events = append(m.events, "cli")
}

func (m *fakeMachine) Halt() {
	m.events = append(m.events, "hlt")
	panic(parked{})
}

// writes returns the port writes recorded since event index from.
func (m *fakeMachine) writes(from int) []string {
	var w []string
	for _, e := range m.events[from:] {
		if strings.HasPrefix(e, "out ") && !strings.HasPrefix(e, "out 0x80 ") && !strings.HasPrefix(e, "out 0x3f8 ") {
			w = append(w, e)
		}
	}
	return w
}

func (m *fakeMachine) index(event string) int {
	for i, e := range m.events {
		if e == event {
			return i
		}
	}
	return -1
}

// bufOutput collects reports.
type bufOutput struct {
	strings.Builder
}

func (b *bufOutput) Write(p []byte) {
	b.Builder.Write(p)
}

func (b *bufOutput) WriteString(s string) {
	b.Builder.WriteString(s)
}

func newTestSubsystem(t *testing.T, cfg Config) (*Subsystem, *fakeMachine, *bufOutput) {
	t.Helper()
	m := newFakeMachine()
	out := new(bufOutput)
	s, err := NewSubsystem(m, out, cfg)
	if err != nil {
		t.Fatalf("NewSubsystem: %v", err)
	}
	return s, m, out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Debug = true
	return cfg
}

// dispatch delivers f to s and reports whether the handler parked the
// processor.
func dispatch(s *Subsystem, f *TrapFrame) (halted bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parked); !ok {
				panic(r)
			}
			halted = true
		}
	}()
	s.Dispatch(f)
	return false
}
