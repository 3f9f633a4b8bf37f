// SPDX-License-Identifier: Unlicense OR MIT

package sim

import "bytes"

// PortAccess is one I/O instruction executed by the kernel.
type PortAccess struct {
	Port  uint16
	Write bool
	Value uint8
}

// loggedPort records every access to the port it wraps.
type loggedPort struct {
	m    *Machine
	addr uint16
	dev  device
}

type device interface {
	Read() uint8
	Write(v uint8)
}

func (p loggedPort) Read() uint8 {
	v := p.dev.Read()
	p.m.access = append(p.m.access, PortAccess{Port: p.addr, Value: v})
	return v
}

func (p loggedPort) Write(v uint8) {
	p.m.access = append(p.m.access, PortAccess{Port: p.addr, Write: true, Value: v})
	p.dev.Write(v)
}

// openBus is an unconnected port: reads float high, writes are lost.
type openBus struct{}

func (openBus) Read() uint8   { return 0xff }
func (openBus) Write(v uint8) {}

// serialPort captures the transmit register of a UART.
type serialPort struct {
	buf *bytes.Buffer
}

func (s serialPort) Read() uint8 {
	return 0
}

func (s serialPort) Write(v uint8) {
	s.buf.WriteByte(v)
}

// PS2 is the data port of a PS/2 controller with a keyboard attached.
// Every queued byte raises line 1.
type PS2 struct {
	queue []byte
	last  byte
}

func (k *PS2) Read() uint8 {
	if len(k.queue) == 0 {
		// The controller returns the last byte again.
		return k.last
	}
	k.last = k.queue[0]
	k.queue = k.queue[1:]
	return k.last
}

func (k *PS2) Write(v uint8) {}

// Pending returns the number of bytes not yet read.
func (k *PS2) Pending() int {
	return len(k.queue)
}

// PIT models the command and channel 0 data ports of an 8254.
type PIT struct {
	// Mode is the last command byte.
	Mode uint8
	// Divisor is the reload value of channel 0, 0 meaning 65536.
	Divisor uint16

	hiNext bool
}

func (t *PIT) command() device {
	return pitCommandPort{t}
}

func (t *PIT) Read() uint8 {
	return 0
}

// Write loads the divisor, low byte first.
func (t *PIT) Write(v uint8) {
	if t.hiNext {
		t.Divisor = t.Divisor&0xff | uint16(v)<<8
	} else {
		t.Divisor = t.Divisor&0xff00 | uint16(v)
	}
	t.hiNext = !t.hiNext
}

type pitCommandPort struct {
	t *PIT
}

func (p pitCommandPort) Read() uint8 {
	return 0
}

func (p pitCommandPort) Write(v uint8) {
	p.t.Mode = v
	p.t.hiNext = false
}
