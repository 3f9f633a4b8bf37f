// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"sync/atomic"
	"unicode/utf8"
)

// faultHandler reports a fault in debug configurations and resumes at
// the faulting instruction.
//
//go:nosplit
func faultHandler(s *Subsystem, f *TrapFrame) {
	s.fault(f)
}

// trapHandler reports a trap and resumes after the trapping
// instruction.
//
//go:nosplit
func trapHandler(s *Subsystem, f *TrapFrame) {
	s.report(f)
}

// reportHandler reports the exception; used by fatal exceptions
// before the dispatcher parks.
//
//go:nosplit
func reportHandler(s *Subsystem, f *TrapFrame) {
	s.report(f)
}

// pageFaultHandler reports the faulting address. There is no way to
// resolve the fault, so the handler is diverging. Release builds park
// without output.
//
//go:nosplit
func pageFaultHandler(s *Subsystem, f *TrapFrame) {
	if !s.cfg.Debug {
		s.park()
	}
	addr := s.m.Register(CR2).Read()
	restore, locked := s.lockOutput()
	report(s.out, f.Vector.Name(), f)
	writePageFault(s.out, addr, f.ErrorCode)
	s.unlockOutput(restore, locked)
}

// debugHandler classifies a debug exception and handles it as a fault
// or a trap. DR6 is cleared before acting so stale status bits never
// reach the next debug exception.
//
//go:nosplit
func debugHandler(s *Subsystem, f *TrapFrame) {
	dr6 := s.m.Register(DR6)
	ev := ClassifyDebug(dr6.Read(), s.m.Register(DR7).Read())
	dr6.Write(0)
	switch ev {
	case DebugFault:
		s.fault(f)
	case DebugTrap:
		s.report(f)
	}
}

//go:nosplit
func timerHandler(s *Subsystem, f *TrapFrame) {
	atomic.AddUint64(&s.ticks, 1)
	s.clock.advance(s.timer.tick())
	s.acknowledge(f.Vector)
}

// keyboardHandler reads one scancode byte and echoes the decoded
// character, if any. The byte must be read before the interrupt is
// acknowledged.
//
//go:nosplit
func keyboardHandler(s *Subsystem, f *TrapFrame) {
	b := s.m.Port(PS2Data).Read()
	restore := s.lock.lock(s.m)
	key, ok := s.kbd.Decode(b)
	if ok && key.Kind == Unicode {
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], key.Rune)
		s.out.Write(buf[:n])
	}
	s.lock.unlock(s.m, restore)
	s.acknowledge(f.Vector)
}

// fault handles a fault that resumes at the faulting instruction.
// Nothing corrects the cause, so a fault that repeats at the same
// instruction FaultRepeatLimit times in a row halts the processor.
//
//go:nosplit
func (s *Subsystem) fault(f *TrapFrame) {
	if s.cfg.Debug {
		s.report(f)
	}
	if !s.faultRepeats(f) {
		return
	}
	restore, locked := s.lockOutput()
	if !s.cfg.Debug {
		report(s.out, f.Vector.Name(), f)
	}
	s.out.WriteString("faulted ")
	writeDecimal(s.out, uint64(s.lastFault.count))
	s.out.WriteString(" times in a row\n")
	s.unlockOutput(restore, locked)
	s.fatal("fault loop")
}

//go:nosplit
func (s *Subsystem) faultRepeats(f *TrapFrame) bool {
	r := &s.lastFault
	if r.count > 0 && r.vector == f.Vector && r.rip == f.RIP {
		r.count++
	} else {
		*r = faultRecord{vector: f.Vector, rip: f.RIP, count: 1}
	}
	limit := s.cfg.FaultRepeatLimit
	return limit > 0 && r.count >= limit
}
