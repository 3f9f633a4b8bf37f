// SPDX-License-Identifier: Unlicense OR MIT

package sim

import "math/bits"

const (
	picCascadeLine = 2
	picLines       = 8

	icw1Init  = 0x10
	icw1ICW4  = 0x01
	ocw3      = 0x08
	ocw3ReadR = 0x02
	ocw3ISR   = 0x01
	ocw2EOI   = 0x20
	ocw2SL    = 0x40
)

// chip is one 8259 controller. Only the features used by PC firmware
// and kernels are modelled: edge triggered lines, non-specific and
// specific EOI and fully nested priority with line 0 highest.
type chip struct {
	offset uint8
	// Registers.
	irr, isr, imr uint8
	// Initialization word expected next; 0 when initialized.
	initStage int
	needICW4  bool
	readISR   bool
	icw3      uint8
	icw4      uint8

	// EOIs counts end of interrupt commands.
	EOIs int
	// Inits counts initialization sequences started.
	Inits int
}

func (c *chip) writeCommand(v uint8) {
	switch {
	case v&icw1Init != 0:
		c.Inits++
		c.initStage = 2
		c.needICW4 = v&icw1ICW4 != 0
		c.imr = 0
		c.isr = 0
		c.irr = 0
		c.readISR = false
	case v&ocw3 != 0:
		if v&ocw3ReadR != 0 {
			c.readISR = v&ocw3ISR != 0
		}
	case v&ocw2EOI != 0:
		c.EOIs++
		if v&ocw2SL != 0 {
			c.isr &^= 1 << (v & 0x7)
			return
		}
		if c.isr != 0 {
			c.isr &^= 1 << bits.TrailingZeros8(c.isr)
		}
	}
}

func (c *chip) writeData(v uint8) {
	switch c.initStage {
	case 2:
		// 8086 mode ignores the low three bits.
		c.offset = v &^ 0x7
		c.initStage = 3
	case 3:
		c.icw3 = v
		if c.needICW4 {
			c.initStage = 4
		} else {
			c.initStage = 0
		}
	case 4:
		c.icw4 = v
		c.initStage = 0
	default:
		c.imr = v
	}
}

func (c *chip) readCommand() uint8 {
	if c.readISR {
		return c.isr
	}
	return c.irr
}

func (c *chip) readData() uint8 {
	return c.imr
}

// pending returns the highest priority requested line that is
// unmasked and not blocked by a line in service.
func (c *chip) pending() (int, bool) {
	if c.initStage != 0 {
		return 0, false
	}
	req := c.irr &^ c.imr
	if req == 0 {
		return 0, false
	}
	line := bits.TrailingZeros8(req)
	if c.isr != 0 && bits.TrailingZeros8(c.isr) <= line {
		return 0, false
	}
	return line, true
}

func (c *chip) accept(line int) {
	c.irr &^= 1 << line
	c.isr |= 1 << line
}

// DualPIC models the cascaded pair of 8259 controllers of the PC.
type DualPIC struct {
	Primary   chip
	Secondary chip
}

func newDualPIC() *DualPIC {
	// Firmware leaves the controllers on the real mode vectors
	// with every line masked.
	return &DualPIC{
		Primary:   chip{offset: 0x08, imr: 0xff},
		Secondary: chip{offset: 0x70, imr: 0xff},
	}
}

// raise requests line irq, 0 to 15.
func (p *DualPIC) raise(irq int) {
	if irq >= picLines {
		p.Secondary.irr |= 1 << (irq - picLines)
		p.Primary.irr |= 1 << picCascadeLine
		return
	}
	p.Primary.irr |= 1 << irq
}

// acknowledge returns the vector of the highest priority pending
// interrupt and moves it in service, as an INTA cycle does.
func (p *DualPIC) acknowledge() (uint8, bool) {
	line, ok := p.Primary.pending()
	if !ok {
		return 0, false
	}
	if line != picCascadeLine {
		p.Primary.accept(line)
		return p.Primary.offset + uint8(line), true
	}
	sline, ok := p.Secondary.pending()
	if !ok {
		// Spurious cascade request.
		p.Primary.irr &^= 1 << picCascadeLine
		return 0, false
	}
	p.Primary.accept(line)
	p.Secondary.accept(sline)
	if p.Secondary.irr&^p.Secondary.imr == 0 {
		p.Primary.irr &^= 1 << picCascadeLine
	}
	return p.Secondary.offset + uint8(sline), true
}

func (p *DualPIC) hasPending() bool {
	_, ok := p.Primary.pending()
	return ok
}

// Offsets returns the vector bases of the two controllers.
func (p *DualPIC) Offsets() (primary, secondary uint8) {
	return p.Primary.offset, p.Secondary.offset
}

// Masks returns the interrupt mask registers.
func (p *DualPIC) Masks() (primary, secondary uint8) {
	return p.Primary.imr, p.Secondary.imr
}

// InService returns the in-service registers.
func (p *DualPIC) InService() (primary, secondary uint8) {
	return p.Primary.isr, p.Secondary.isr
}

type picPort struct {
	c    *chip
	data bool
}

func (p picPort) Read() uint8 {
	if p.data {
		return p.c.readData()
	}
	return p.c.readCommand()
}

func (p picPort) Write(v uint8) {
	if p.data {
		p.c.writeData(v)
		return
	}
	p.c.writeCommand(v)
}
