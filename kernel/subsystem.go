// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"sync/atomic"
	"time"
)

// binding is the state of one interrupt vector.
type binding struct {
	claimed bool
	h       Handler
	gate    gateKind
	ist     uint8
}

type faultRecord struct {
	vector Vector
	rip    uint64
	count  int
}

// Subsystem owns the descriptor tables, the interrupt controllers and
// the device state touched by interrupt handlers. There is one per
// processor, created before interrupts are enabled.
type Subsystem struct {
	m   Machine
	out Output
	cfg Config

	gdt      *GDT
	idt      IDT
	bindings [256]binding
	loaded   bool

	// lock guards kbd, out and the controller command ports.
	lock irqLock
	pics *ChainedPICs
	kbd  *Keyboard

	timer pit
	clock clock
	ticks uint64

	lastFault faultRecord
}

// NewSubsystem returns a subsystem driving m, with every supported
// exception and the timer and keyboard lines bound to the default
// handlers. Reports go to out.
func NewSubsystem(m Machine, out Output, cfg Config) (*Subsystem, error) {
	pics, err := NewChainedPICs(m, cfg.PrimaryOffset, cfg.SecondaryOffset)
	if err != nil {
		return nil, err
	}
	if cfg.TimerFrequency != 0 {
		if _, err := pitDivisor(cfg.TimerFrequency); err != nil {
			return nil, err
		}
	}
	s := &Subsystem{
		m:     m,
		out:   out,
		cfg:   cfg,
		pics:  pics,
		kbd:   NewKeyboard(cfg.Control),
		timer: newPIT(m),
	}
	for v, info := range exceptions {
		if info.class == 0 {
			continue
		}
		s.bindings[v] = binding{
			claimed: true,
			h:       defaultHandler(Vector(v), info.class),
			gate:    info.gate,
			ist:     info.ist,
		}
	}
	s.bind(pics.Vector(TimerIRQ), Returns(timerHandler))
	s.bind(pics.Vector(KeyboardIRQ), Returns(keyboardHandler))
	return s, nil
}

func defaultHandler(v Vector, c Class) Handler {
	switch {
	case v == PageFault:
		return Diverges("unresolved page fault", pageFaultHandler)
	case v == Debug:
		return Returns(debugHandler)
	case c == Trap:
		return Returns(trapHandler)
	case c == Fatal:
		return Diverges(v.Name(), reportHandler)
	default:
		return Returns(faultHandler)
	}
}

func (s *Subsystem) bind(v Vector, h Handler) {
	b := &s.bindings[v]
	if !b.claimed {
		*b = binding{claimed: true, gate: interruptGate, ist: b.ist}
	}
	b.h = h
}

// Handle binds h to v, replacing any default handler. Handlers can
// only be changed before Init.
func (s *Subsystem) Handle(v Vector, h Handler) error {
	if s.loaded {
		return errAlreadyLoaded
	}
	s.bind(v, h)
	return nil
}

// SetStack selects the interrupt stack v runs on. Zero means the
// interrupted stack.
func (s *Subsystem) SetStack(v Vector, ist uint8) error {
	if s.loaded {
		return errAlreadyLoaded
	}
	if ist > numInterruptStacks {
		return errStackIndex
	}
	s.bindings[v].ist = ist
	return nil
}

// validate checks the vector table before it is loaded.
func (s *Subsystem) validate() error {
	if df := s.bindings[DoubleFault]; !df.claimed || df.ist != DoubleFaultStack {
		return errDoubleFaultStack
	}
	for v := range s.bindings {
		b := &s.bindings[v]
		if !b.claimed {
			continue
		}
		if !b.h.bound() {
			return errUnboundVector
		}
		if Vector(v) != DoubleFault && b.ist == DoubleFaultStack {
			return errStackShared
		}
	}
	return nil
}

// Init loads the descriptor tables and the vector table, remaps the
// interrupt controllers and starts the timer, in that order. Init
// returns an error before touching the hardware if the configuration
// is invalid, and errAlreadyLoaded on any call after the first
// successful one.
func (s *Subsystem) Init() error {
	if s.loaded {
		return errAlreadyLoaded
	}
	if err := s.validate(); err != nil {
		return err
	}
	var entries [256]uintptr
	for v := range s.bindings {
		if !s.bindings[v].claimed {
			continue
		}
		pc := s.m.EntryPoint(Vector(v))
		if pc == 0 {
			return errNoEntryPoint
		}
		entries[v] = pc
	}
	var divisor uint32
	if s.cfg.TimerFrequency != 0 {
		d, err := pitDivisor(s.cfg.TimerFrequency)
		if err != nil {
			return err
		}
		divisor = d
	}
	if s.gdt == nil {
		tss, err := newTSS()
		if err != nil {
			return err
		}
		s.gdt = newGDT(tss)
	}

	s.m.LoadGDT(s.gdt)
	s.m.SetCodeSegment(s.gdt.CodeSelector())
	s.m.LoadTaskRegister(s.gdt.TSSSelector())

	for v := range s.bindings {
		b := &s.bindings[v]
		if !b.claimed {
			continue
		}
		s.idt.install(Vector(v), s.gdt.CodeSelector(), ring0, b.ist, b.gate, entries[v])
	}
	s.m.LoadIDT(&s.idt, s)

	restore := s.lock.lock(s.m)
	s.pics.Initialize()
	s.pics.SetMasks(s.lineMasks())
	s.lock.unlock(s.m, restore)

	if divisor != 0 {
		s.timer.program(divisor)
	}
	s.loaded = true
	return nil
}

// lineMasks returns controller masks with every bound line enabled.
func (s *Subsystem) lineMasks() (primary, secondary uint8) {
	primary, secondary = 0xff, 0xff
	for irq := 0; irq < 2*picLines; irq++ {
		if !s.bindings[s.pics.Vector(irq)].claimed {
			continue
		}
		if irq < picLines {
			primary &^= 1 << irq
		} else {
			secondary &^= 1 << (irq - picLines)
			// Cascade line.
			primary &^= 1 << 2
		}
	}
	return primary, secondary
}

// Enable enables interrupts on the processor. It fails unless Init
// has completed.
func (s *Subsystem) Enable() error {
	if !s.loaded {
		return errNotLoaded
	}
	s.m.EnableInterrupts()
	return nil
}

// Loaded reports whether Init has completed.
func (s *Subsystem) Loaded() bool {
	return s.loaded
}

// GDT returns the loaded descriptor table, or nil before Init.
func (s *Subsystem) GDT() *GDT {
	return s.gdt
}

// IDT returns the vector table.
func (s *Subsystem) IDT() *IDT {
	return &s.idt
}

// PICs returns the interrupt controller pair.
func (s *Subsystem) PICs() *ChainedPICs {
	return s.pics
}

// Ticks returns the number of timer interrupts handled.
func (s *Subsystem) Ticks() uint64 {
	return atomic.LoadUint64(&s.ticks)
}

// Uptime returns the time accumulated by timer interrupts.
func (s *Subsystem) Uptime() time.Duration {
	return s.clock.monotone()
}

// Dispatch runs the handler bound to f.Vector. It is called by the
// entry routines with interrupts in the state the gate left them.
//
//go:nosplit
func (s *Subsystem) Dispatch(f *TrapFrame) {
	b := &s.bindings[f.Vector]
	if !b.claimed || !b.h.bound() {
		s.report(f)
		s.fatal("unexpected interrupt")
	}
	if b.h.Func != nil {
		b.h.Func(s, f)
	}
	if b.h.Kind == Diverging {
		s.fatal(b.h.Reason)
	}
}

// lockOutput acquires exclusive access to the output. The lock is
// only ever held with interrupts disabled, so if it is held here it
// belongs to the code this exception interrupted and waiting for it
// would never end; the output is then used without it.
//
//go:nosplit
func (s *Subsystem) lockOutput() (restoreIF, locked bool) {
	if s.lock.held() {
		return false, false
	}
	return s.lock.lock(s.m), true
}

//go:nosplit
func (s *Subsystem) unlockOutput(restoreIF, locked bool) {
	if locked {
		s.lock.unlock(s.m, restoreIF)
	}
}

//go:nosplit
func (s *Subsystem) report(f *TrapFrame) {
	restore, locked := s.lockOutput()
	report(s.out, f.Vector.Name(), f)
	s.unlockOutput(restore, locked)
}

// fatal reports msg and parks the processor. It never returns.
//
//go:nosplit
func (s *Subsystem) fatal(msg string) {
	restore, locked := s.lockOutput()
	s.out.WriteString("fatal error: ")
	s.out.WriteString(msg)
	s.out.WriteString("\n")
	s.unlockOutput(restore, locked)
	s.park()
}

//go:nosplit
func (s *Subsystem) park() {
	s.m.DisableInterrupts()
	for {
		s.m.Halt()
	}
}

// acknowledge signals the end of hardware interrupt v.
//
//go:nosplit
func (s *Subsystem) acknowledge(v Vector) {
	restore := s.lock.lock(s.m)
	s.pics.Acknowledge(v)
	s.lock.unlock(s.m, restore)
}
