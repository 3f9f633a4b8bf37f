// SPDX-License-Identifier: Unlicense OR MIT

package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"golang.org/x/arch/x86/x86asm"

	"github.com/maxgmr/tlenek/kernel"
)

const (
	// CodeBase is the address programs are loaded at.
	CodeBase = 0x200000
	// StackTop is the initial stack pointer of programs. The stack
	// grows down from here; the page below it is unmapped.
	StackTop = 0x800000
)

// General purpose register numbers, in encoding order.
const (
	rax = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
)

// cpu is the architectural state the interpreter needs: general
// purpose registers, the instruction pointer, the program and its
// stack.
type cpu struct {
	regs  [16]uint64
	rip   uint64
	code  []byte
	stack []byte
	steps int
}

func (c *cpu) stackBase() uint64 {
	return StackTop - uint64(len(c.stack))
}

// operand returns the register r names and its width in bits.
func (c *cpu) operand(r x86asm.Reg) (*uint64, int, bool) {
	switch {
	case r >= x86asm.RAX && r <= x86asm.R15:
		return &c.regs[r-x86asm.RAX], 64, true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return &c.regs[r-x86asm.EAX], 32, true
	}
	return nil, 0, false
}

// Load resets the processor registers and places prog at CodeBase.
// Interrupt state and loaded tables are kept.
func (m *Machine) Load(prog []byte) {
	c := &m.cpu
	c.code = append(c.code[:0], prog...)
	c.regs = [16]uint64{}
	c.regs[rsp] = StackTop
	c.rip = CodeBase
	c.steps = 0
	if m.state == Idle {
		m.state = Running
	}
}

// Run loads prog and executes it until it halts with nothing to do,
// the kernel parks the processor, the processor resets or the step
// limit is reached.
func (m *Machine) Run(prog []byte) error {
	m.Load(prog)
	return m.Resume()
}

// Resume continues execution of the loaded program.
func (m *Machine) Resume() (err error) {
	if err := m.stopped(); err != nil {
		return err
	}
	m.state = Running
	defer m.recoverStop(&err)
	for {
		if m.cpu.steps >= m.maxSteps {
			return fmt.Errorf("%w after %d instructions at %#x", ErrStepLimit, m.cpu.steps, m.cpu.rip)
		}
		m.cpu.steps++
		// Interrupts are recognized on instruction boundaries.
		if m.serviceOne() {
			continue
		}
		if idle := m.step(); idle {
			if m.ifFlag && m.PIC.hasPending() {
				continue
			}
			m.state = Idle
			return nil
		}
	}
}

// RIP returns the instruction pointer.
func (m *Machine) RIP() uint64 {
	return m.cpu.rip
}

// Reg returns the value of a 64-bit general purpose register.
func (m *Machine) Reg(r x86asm.Reg) uint64 {
	p, _, ok := m.cpu.operand(r)
	if !ok {
		return 0
	}
	return *p
}

// Steps returns the number of instructions executed by the last Run.
func (m *Machine) Steps() int {
	return m.cpu.steps
}

// Decode decodes the program instruction at addr.
func (m *Machine) Decode(addr uint64) (x86asm.Inst, error) {
	c := &m.cpu
	if addr < CodeBase || addr-CodeBase >= uint64(len(c.code)) {
		return x86asm.Inst{}, fmt.Errorf("sim: %#x is outside the program", addr)
	}
	return x86asm.Decode(c.code[addr-CodeBase:], 64)
}

// Disassemble returns the program instruction at addr in GNU syntax.
func (m *Machine) Disassemble(addr uint64) string {
	inst, err := m.Decode(addr)
	if err != nil {
		return "?"
	}
	return x86asm.GNUSyntax(inst, addr, nil)
}

// fault raises v with the address of the current instruction as
// return address.
func (m *Machine) fault(v kernel.Vector, code uint64) {
	m.cpu.rip = m.exception(v, code, m.cpu.rip)
}

func (m *Machine) push(v uint64) bool {
	c := &m.cpu
	sp := c.regs[rsp] - 8
	if sp < c.stackBase() || sp+8 > StackTop {
		m.sysregs[kernel.CR2] = sp
		m.fault(kernel.PageFault, pfNotPresentWrite)
		return false
	}
	binary.LittleEndian.PutUint64(c.stack[sp-c.stackBase():], v)
	c.regs[rsp] = sp
	return true
}

func (m *Machine) pop() (uint64, bool) {
	c := &m.cpu
	sp := c.regs[rsp]
	if sp < c.stackBase() || sp+8 > StackTop {
		m.sysregs[kernel.CR2] = sp
		m.fault(kernel.PageFault, 0)
		return 0, false
	}
	v := binary.LittleEndian.Uint64(c.stack[sp-c.stackBase():])
	c.regs[rsp] = sp + 8
	return v, true
}

// value evaluates a register or immediate source operand.
func (m *Machine) value(a x86asm.Arg, width int) (uint64, bool) {
	switch a := a.(type) {
	case x86asm.Imm:
		v := uint64(a)
		if width == 32 {
			v &= math.MaxUint32
		}
		return v, true
	case x86asm.Reg:
		p, w, ok := m.cpu.operand(a)
		if !ok {
			return 0, false
		}
		if w == 32 {
			return *p & math.MaxUint32, true
		}
		return *p, true
	}
	return 0, false
}

// step executes one instruction. It reports true when the processor
// executed HLT.
func (m *Machine) step() bool {
	c := &m.cpu
	inst, err := m.Decode(c.rip)
	if err != nil {
		if c.rip < CodeBase || c.rip-CodeBase >= uint64(len(c.code)) {
			m.sysregs[kernel.CR2] = c.rip
			m.fault(kernel.PageFault, pfFetch)
			return false
		}
		m.fault(kernel.InvalidOpcode, 0)
		return false
	}
	next := c.rip + uint64(inst.Len)
	switch inst.Op {
	case x86asm.NOP:
	case x86asm.HLT:
		c.rip = next
		return true
	case x86asm.INT:
		n, ok := inst.Args[0].(x86asm.Imm)
		if !ok {
			m.fault(kernel.InvalidOpcode, 0)
			return false
		}
		c.rip = m.exception(kernel.Vector(n), 0, next)
		return false
	case x86asm.CALL, x86asm.JMP:
		rel, ok := inst.Args[0].(x86asm.Rel)
		if !ok {
			m.fault(kernel.InvalidOpcode, 0)
			return false
		}
		if inst.Op == x86asm.CALL && !m.push(next) {
			return false
		}
		c.rip = next + uint64(int64(rel))
		return false
	case x86asm.RET:
		v, ok := m.pop()
		if !ok {
			return false
		}
		c.rip = v
		return false
	case x86asm.PUSH:
		v, ok := m.value(inst.Args[0], 64)
		if !ok {
			m.fault(kernel.InvalidOpcode, 0)
			return false
		}
		if !m.push(v) {
			return false
		}
	case x86asm.POP:
		r, _ := inst.Args[0].(x86asm.Reg)
		dst, _, ok := m.cpu.operand(r)
		if !ok {
			m.fault(kernel.InvalidOpcode, 0)
			return false
		}
		v, ok := m.pop()
		if !ok {
			return false
		}
		*dst = v
	case x86asm.MOV, x86asm.XOR, x86asm.ADD, x86asm.SUB:
		if !m.alu(inst) {
			m.fault(kernel.InvalidOpcode, 0)
			return false
		}
	case x86asm.DIV:
		if !m.div(inst) {
			return false
		}
	default:
		// UD2 and everything the interpreter does not know.
		m.fault(kernel.InvalidOpcode, 0)
		return false
	}
	c.rip = next
	return false
}

func (m *Machine) alu(inst x86asm.Inst) bool {
	r, ok := inst.Args[0].(x86asm.Reg)
	if !ok {
		return false
	}
	dst, width, ok := m.cpu.operand(r)
	if !ok {
		return false
	}
	src, ok := m.value(inst.Args[1], width)
	if !ok {
		return false
	}
	v := *dst
	switch inst.Op {
	case x86asm.MOV:
		v = src
	case x86asm.XOR:
		v ^= src
	case x86asm.ADD:
		v += src
	case x86asm.SUB:
		v -= src
	}
	if width == 32 {
		// 32-bit results are zero extended.
		v &= math.MaxUint32
	}
	*dst = v
	return true
}

// div executes an unsigned divide. A zero divisor or a quotient that
// does not fit raises a divide error.
func (m *Machine) div(inst x86asm.Inst) bool {
	r, ok := inst.Args[0].(x86asm.Reg)
	if !ok {
		m.fault(kernel.InvalidOpcode, 0)
		return false
	}
	p, width, ok := m.cpu.operand(r)
	if !ok {
		m.fault(kernel.InvalidOpcode, 0)
		return false
	}
	c := &m.cpu
	switch width {
	case 64:
		d := *p
		if d == 0 || c.regs[rdx] >= d {
			m.fault(kernel.DivideError, 0)
			return false
		}
		c.regs[rax], c.regs[rdx] = bits.Div64(c.regs[rdx], c.regs[rax], d)
	case 32:
		d := *p & math.MaxUint32
		n := c.regs[rdx]&math.MaxUint32<<32 | c.regs[rax]&math.MaxUint32
		if d == 0 || n/d > math.MaxUint32 {
			m.fault(kernel.DivideError, 0)
			return false
		}
		c.regs[rax], c.regs[rdx] = n/d, n%d
	}
	return true
}
