// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Intel 8259 programmable interrupt controller pair, as wired in the
// PC: a primary chip on ports 0x20/0x21 and a secondary chip cascaded
// on its line 2, on ports 0xa0/0xa1.

const (
	pic1Command = 0x20
	pic1Data    = 0x21
	pic2Command = 0xa0
	pic2Data    = 0xa1

	// Writes to the unused POST port take long enough for the
	// controllers to settle between initialization words.
	ioWaitPort = 0x80

	picLines = 8

	icw1Init = 0x11 // Edge triggered, cascade, ICW4 follows.
	icw4Mode = 0x01 // 8086 mode.
	cmdEOI   = 0x20
)

// pic is one 8259 chip.
type pic struct {
	offset  uint8
	command Port
	data    Port
}

//go:nosplit
func (p *pic) handlesInterrupt(v Vector) bool {
	return uint8(v) >= p.offset && uint(v) < uint(p.offset)+picLines
}

//go:nosplit
func (p *pic) endOfInterrupt() {
	p.command.Write(cmdEOI)
}

// ChainedPICs is the primary and secondary controller pair.
type ChainedPICs struct {
	primary   pic
	secondary pic
	wait      Port
}

// NewChainedPICs returns the controller pair on m with the given vector
// offsets. The secondary block must follow the primary one directly and
// both must lie above the exception vectors.
func NewChainedPICs(m Machine, primary, secondary uint8) (*ChainedPICs, error) {
	if err := checkPICOffsets(primary, secondary); err != nil {
		return nil, err
	}
	return &ChainedPICs{
		primary:   pic{offset: primary, command: m.Port(pic1Command), data: m.Port(pic1Data)},
		secondary: pic{offset: secondary, command: m.Port(pic2Command), data: m.Port(pic2Data)},
		wait:      m.Port(ioWaitPort),
	}, nil
}

// checkPICOffsets validates a pair of controller offsets. In 8086
// mode the controllers ignore the low three bits of the offset.
func checkPICOffsets(primary, secondary uint8) error {
	switch {
	case primary < uint8(FirstAvailable),
		primary%picLines != 0,
		primary > 0xff-2*picLines+1,
		uint(secondary) != uint(primary)+picLines:
		return errPICOffsets
	}
	return nil
}

//go:nosplit
func (c *ChainedPICs) ioWait() {
	c.wait.Write(0)
}

// Initialize remaps both controllers to their offsets. The interrupt
// masks are preserved.
//
//go:nosplit
func (c *ChainedPICs) Initialize() {
	mask1 := c.primary.data.Read()
	mask2 := c.secondary.data.Read()

	c.primary.command.Write(icw1Init)
	c.ioWait()
	c.secondary.command.Write(icw1Init)
	c.ioWait()

	c.primary.data.Write(c.primary.offset)
	c.ioWait()
	c.secondary.data.Write(c.secondary.offset)
	c.ioWait()

	// The secondary is cascaded on line 2 of the primary.
	c.primary.data.Write(4)
	c.ioWait()
	c.secondary.data.Write(2)
	c.ioWait()

	c.primary.data.Write(icw4Mode)
	c.ioWait()
	c.secondary.data.Write(icw4Mode)
	c.ioWait()

	c.primary.data.Write(mask1)
	c.secondary.data.Write(mask2)
}

// Masks returns the interrupt masks of the primary and secondary chip.
//
//go:nosplit
func (c *ChainedPICs) Masks() (primary, secondary uint8) {
	return c.primary.data.Read(), c.secondary.data.Read()
}

// SetMasks sets the interrupt masks. A set bit disables the line.
//
//go:nosplit
func (c *ChainedPICs) SetMasks(primary, secondary uint8) {
	c.primary.data.Write(primary)
	c.secondary.data.Write(secondary)
}

// Disable masks every line of both controllers.
//
//go:nosplit
func (c *ChainedPICs) Disable() {
	c.SetMasks(0xff, 0xff)
}

// HandlesInterrupt reports whether v is routed through either
// controller.
//
//go:nosplit
func (c *ChainedPICs) HandlesInterrupt(v Vector) bool {
	return c.primary.handlesInterrupt(v) || c.secondary.handlesInterrupt(v)
}

// Acknowledge signals the end of interrupt v. Vectors of the secondary
// controller are acknowledged on both chips, the secondary first.
// Other vectors are ignored.
//
//go:nosplit
func (c *ChainedPICs) Acknowledge(v Vector) {
	if !c.HandlesInterrupt(v) {
		return
	}
	if c.secondary.handlesInterrupt(v) {
		c.secondary.endOfInterrupt()
	}
	c.primary.endOfInterrupt()
}

// Vector returns the vector of line irq of the primary controller,
// or of the secondary controller for irq 8 through 15.
//
//go:nosplit
func (c *ChainedPICs) Vector(irq int) Vector {
	if irq < picLines {
		return Vector(c.primary.offset) + Vector(irq)
	}
	return Vector(c.secondary.offset) + Vector(irq-picLines)
}
