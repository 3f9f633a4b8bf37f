// SPDX-License-Identifier: Unlicense OR MIT

// Package sim models the hardware the trap core drives: an x86-64
// processor delivering exceptions and interrupts through the loaded
// descriptor tables, the cascaded 8259 controllers, the interval
// timer, a PS/2 keyboard and a serial line. Machine implements
// kernel.Machine, so a kernel.Subsystem runs on it unchanged.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maxgmr/tlenek/kernel"
)

var (
	// ErrHalted is returned once the kernel has parked the processor.
	ErrHalted = errors.New("sim: processor halted")
	// ErrReset is returned after a triple fault.
	ErrReset = errors.New("sim: triple fault, processor reset")
	// ErrStepLimit is returned when a program runs for too long.
	ErrStepLimit = errors.New("sim: step limit reached")
)

// State is the run state of the processor.
type State uint8

const (
	Running State = iota
	// Idle means the program executed HLT with nothing pending.
	Idle
	// Halted means the kernel parked the processor.
	Halted
	// Reset means a triple fault reset the processor.
	Reset
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Idle:
		return "idle"
	case Halted:
		return "halted"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// stop unwinds the Go stack of a handler when the processor stops.
type stop int

const (
	stopHalt stop = iota + 1
	stopReset
)

const (
	flagReserved = 1 << 1
	flagIF       = 1 << 9

	// Entry routines are given synthetic addresses below the code.
	entryBase   = 0x100000
	entryStride = 16

	pfNotPresentWrite = 1 << 1
	pfFetch           = 1 << 4

	// Nesting limit for deliveries.
	maxDepth = 16
)

// Delivery records one transfer of control to a handler.
type Delivery struct {
	Vector kernel.Vector
	// RIP is the return address in the frame.
	RIP uint64
	// Stack is the stack pointer the handler started on.
	Stack uint64
	IST   int
	Trap  bool
}

// Options configures a Machine.
type Options struct {
	// Logger receives the delivery trace at debug level. Nil means
	// slog.Default().
	Logger *slog.Logger
	// MaxSteps bounds the instructions executed by Run. Zero means
	// 100000.
	MaxSteps int
	// StackSize is the size of the program stack in bytes. Zero
	// means 16 KiB.
	StackSize int
}

// Machine is a model of a single processor PC.
type Machine struct {
	log      *slog.Logger
	maxSteps int

	PIC *DualPIC
	PIT *PIT
	PS2 *PS2

	bus    map[uint16]device
	serial bytes.Buffer
	access []PortAccess

	sysregs [3]uint64
	ifFlag  bool

	gdt        *kernel.GDT
	cs         kernel.Selector
	tr         kernel.Selector
	idt        *kernel.IDT
	dispatcher kernel.Dispatcher

	cpu        cpu
	deliveries []Delivery
	depth      int
	state      State
}

// New returns a machine in the state firmware hands over to the
// kernel: interrupts disabled, no descriptor tables loaded and the
// interrupt controllers masked.
func New(opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = 100000
	}
	if opts.StackSize == 0 {
		opts.StackSize = 16 << 10
	}
	m := &Machine{
		log:      opts.Logger,
		maxSteps: opts.MaxSteps,
		PIC:      newDualPIC(),
		PIT:      new(PIT),
		PS2:      new(PS2),
	}
	m.cpu.stack = make([]byte, opts.StackSize)
	m.cpu.regs[rsp] = StackTop
	m.bus = map[uint16]device{
		0x20:           picPort{c: &m.PIC.Primary},
		0x21:           picPort{c: &m.PIC.Primary, data: true},
		0xa0:           picPort{c: &m.PIC.Secondary},
		0xa1:           picPort{c: &m.PIC.Secondary, data: true},
		0x40:           m.PIT,
		0x43:           m.PIT.command(),
		kernel.PS2Data: m.PS2,
		kernel.COM1:    serialPort{buf: &m.serial},
	}
	return m
}

// Port implements kernel.Machine.
func (m *Machine) Port(addr uint16) kernel.Port {
	dev, ok := m.bus[addr]
	if !ok {
		dev = openBus{}
	}
	return loggedPort{m: m, addr: addr, dev: dev}
}

type register struct {
	v *uint64
}

func (r register) Read() uint64 {
	return *r.v
}

func (r register) Write(v uint64) {
	*r.v = v
}

// Register implements kernel.Machine.
func (m *Machine) Register(id kernel.RegisterID) kernel.Register {
	if int(id) >= len(m.sysregs) {
		panic(fmt.Sprintf("sim: unknown register %d", id))
	}
	return register{&m.sysregs[id]}
}

// LoadGDT implements kernel.Machine.
func (m *Machine) LoadGDT(g *kernel.GDT) {
	m.log.Debug("lgdt", "limit", g.Limit())
	m.gdt = g
}

// SetCodeSegment implements kernel.Machine. Loading a selector that
// does not name a 64-bit code segment faults before any vector table
// is usable, which resets the processor.
func (m *Machine) SetCodeSegment(sel kernel.Selector) {
	if !m.validSelector(sel, kernel.IsLongCode) {
		m.log.Debug("triple fault", "reason", "bad code selector", "selector", uint16(sel))
		m.state = Reset
		return
	}
	m.cs = sel
}

// LoadTaskRegister implements kernel.Machine. The selector must name
// an available TSS.
func (m *Machine) LoadTaskRegister(sel kernel.Selector) {
	if !m.validSelector(sel, kernel.IsAvailableTSS) {
		m.log.Debug("triple fault", "reason", "bad task selector", "selector", uint16(sel))
		m.state = Reset
		return
	}
	m.tr = sel
}

func (m *Machine) validSelector(sel kernel.Selector, valid func(uint64) bool) bool {
	if m.gdt == nil || sel>>3 == 0 {
		return false
	}
	d, ok := m.gdt.Descriptor(sel)
	return ok && valid(d)
}

// LoadIDT implements kernel.Machine.
func (m *Machine) LoadIDT(t *kernel.IDT, d kernel.Dispatcher) {
	m.log.Debug("lidt")
	m.idt = t
	m.dispatcher = d
}

// EntryPoint implements kernel.Machine.
func (m *Machine) EntryPoint(v kernel.Vector) uintptr {
	return uintptr(entryBase + uint64(v)*entryStride)
}

// InterruptsEnabled implements kernel.Machine.
func (m *Machine) InterruptsEnabled() bool {
	return m.ifFlag
}

// EnableInterrupts implements kernel.Machine.
func (m *Machine) EnableInterrupts() {
	m.ifFlag = true
}

// DisableInterrupts implements kernel.Machine.
func (m *Machine) DisableInterrupts() {
	m.ifFlag = false
}

// Halt implements kernel.Machine. With interrupts disabled the
// processor never wakes up again.
func (m *Machine) Halt() {
	if m.ifFlag && m.PIC.hasPending() {
		m.serviceOne()
		return
	}
	m.log.Debug("halt", "rip", m.cpu.rip)
	panic(stopHalt)
}

// recoverStop turns a processor stop into an error. It must be
// deferred by every entry point that can run kernel handlers.
func (m *Machine) recoverStop(err *error) {
	r := recover()
	if r == nil {
		return
	}
	s, ok := r.(stop)
	if !ok {
		panic(r)
	}
	m.depth = 0
	switch s {
	case stopHalt:
		m.state = Halted
		*err = ErrHalted
	case stopReset:
		m.state = Reset
		*err = ErrReset
	}
}

func (m *Machine) stopped() error {
	switch m.state {
	case Halted:
		return ErrHalted
	case Reset:
		return ErrReset
	}
	return nil
}

// gate looks up the handler of v the way the processor does. It
// reports false if delivery would itself fault.
func (m *Machine) gate(v kernel.Vector) (g kernel.Gate, entry kernel.Vector, stack uint64, ok bool) {
	if m.idt == nil || m.dispatcher == nil || m.gdt == nil {
		return g, 0, 0, false
	}
	g = m.idt[v]
	if !g.Present() {
		return g, 0, 0, false
	}
	if d, ok := m.gdt.Descriptor(g.Selector()); !ok || !kernel.IsLongCode(d) {
		return g, 0, 0, false
	}
	off := g.Offset()
	if off < entryBase || off >= entryBase+256*entryStride || (off-entryBase)%entryStride != 0 {
		return g, 0, 0, false
	}
	entry = kernel.Vector((off - entryBase) / entryStride)
	if ist := g.IST(); ist != 0 {
		if m.tr == 0 {
			return g, 0, 0, false
		}
		stack = m.gdt.TSS().InterruptStack(ist)
		return g, entry, stack, stack != 0
	}
	frame := uint64(40)
	if kernel.HasErrorCode(v) {
		frame += 8
	}
	sp := m.cpu.regs[rsp]
	if sp-frame < m.cpu.stackBase() {
		m.sysregs[kernel.CR2] = sp - frame
		return g, 0, 0, false
	}
	return g, entry, sp - frame, true
}

// exception delivers v with the return address resume and returns
// the address execution continues at. A vector that cannot be
// delivered becomes a double fault; a double fault that cannot be
// delivered resets the processor.
func (m *Machine) exception(v kernel.Vector, code, resume uint64) uint64 {
	if m.depth >= maxDepth {
		m.log.Debug("triple fault", "reason", "nesting")
		panic(stopReset)
	}
	g, entry, stack, ok := m.gate(v)
	if !ok {
		if v == kernel.DoubleFault {
			m.log.Debug("triple fault", "rip", m.cpu.rip)
			panic(stopReset)
		}
		m.log.Debug("delivery failed", "vector", uint8(v), "rip", m.cpu.rip)
		return m.exception(kernel.DoubleFault, 0, resume)
	}
	flags := uint64(flagReserved)
	if m.ifFlag {
		flags |= flagIF
	}
	f := kernel.TrapFrame{
		Vector: entry,
		RIP:    resume,
		CS:     uint64(m.cs),
		RFLAGS: flags,
		RSP:    m.cpu.regs[rsp],
	}
	if kernel.HasErrorCode(entry) {
		f.ErrorCode = code
	}
	m.deliveries = append(m.deliveries, Delivery{
		Vector: entry,
		RIP:    resume,
		Stack:  stack,
		IST:    g.IST(),
		Trap:   g.Trap(),
	})
	m.log.Debug("deliver", "vector", uint8(entry), "rip", resume, "stack", stack, "ist", g.IST())
	if !g.Trap() {
		m.ifFlag = false
	}
	m.depth++
	m.dispatcher.Dispatch(&f)
	m.depth--
	// IRETQ.
	m.ifFlag = f.RFLAGS&flagIF != 0
	return f.RIP
}

// serviceOne delivers the highest priority pending interrupt, if
// interrupts are enabled.
func (m *Machine) serviceOne() bool {
	if !m.ifFlag {
		return false
	}
	v, ok := m.PIC.acknowledge()
	if !ok {
		return false
	}
	m.cpu.rip = m.exception(kernel.Vector(v), 0, m.cpu.rip)
	return true
}

// Service delivers pending interrupts until none is left or
// interrupts are disabled.
func (m *Machine) Service() (err error) {
	if err := m.stopped(); err != nil {
		return err
	}
	defer m.recoverStop(&err)
	for i := 0; i < 2*picLines && m.serviceOne(); i++ {
	}
	return nil
}

// Tick raises the timer line and services it.
func (m *Machine) Tick() error {
	m.PIC.raise(0)
	return m.Service()
}

// Type queues scancode bytes on the keyboard, raising line 1 and
// servicing it for each.
func (m *Machine) Type(scancodes ...byte) error {
	for _, b := range scancodes {
		m.PS2.queue = append(m.PS2.queue, b)
		m.PIC.raise(1)
		if err := m.Service(); err != nil {
			return err
		}
	}
	return nil
}

// Raise delivers exception v as a fault at the current instruction.
func (m *Machine) Raise(v kernel.Vector, code uint64) (err error) {
	if err := m.stopped(); err != nil {
		return err
	}
	defer m.recoverStop(&err)
	m.cpu.rip = m.exception(v, code, m.cpu.rip)
	return nil
}

// Transcript returns everything written to the serial line.
func (m *Machine) Transcript() string {
	return m.serial.String()
}

// Accesses returns the port accesses made so far.
func (m *Machine) Accesses() []PortAccess {
	return m.access
}

// Deliveries returns the handler invocations so far.
func (m *Machine) Deliveries() []Delivery {
	return m.deliveries
}

// State returns the run state.
func (m *Machine) State() State {
	return m.state
}

// CodeSelector returns the loaded code segment selector.
func (m *Machine) CodeSelector() kernel.Selector {
	return m.cs
}

// TaskRegister returns the loaded task register selector.
func (m *Machine) TaskRegister() kernel.Selector {
	return m.tr
}
