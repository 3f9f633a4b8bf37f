// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"sync/atomic"
	"time"
)

// Intel 8253/8254 programmable interval timer, channel 0, wired to
// line 0 of the primary interrupt controller.

const (
	pitChannel0 = 0x40
	pitCommand  = 0x43

	// Channel 0, lobyte/hibyte access, mode 3 (square wave), binary.
	pitMode3 = 0x36

	// pitFrequency is the input clock of the timer in Hz.
	pitFrequency = 1193182
	// The power-on divisor, programmed as 0.
	pitDefaultDivisor = 65536
)

// pit is channel 0 of the interval timer.
type pit struct {
	command Port
	data    Port
	divisor uint32
	// femtoseconds per tick.
	period uint64
	accum  uint64
}

//go:nosplit
func newPIT(m Machine) pit {
	p := pit{
		command: m.Port(pitCommand),
		data:    m.Port(pitChannel0),
	}
	p.setDivisor(pitDefaultDivisor)
	return p
}

// pitDivisor returns the channel 0 divisor for a tick rate of hz.
func pitDivisor(hz uint32) (uint32, error) {
	if hz == 0 {
		return 0, errPITFrequency
	}
	d := (pitFrequency + hz/2) / hz
	if d < 1 || d > pitDefaultDivisor {
		return 0, errPITFrequency
	}
	return d, nil
}

//go:nosplit
func (p *pit) setDivisor(d uint32) {
	p.divisor = d
	// d * 1e15 overflows for divisors above 18446.
	const fs = 1000000000000000
	const q, r = fs / pitFrequency, fs % pitFrequency
	p.period = uint64(d)*q + uint64(d)*r/pitFrequency
}

// program starts channel 0 as a rate generator with divisor d.
//
//go:nosplit
func (p *pit) program(d uint32) {
	p.setDivisor(d)
	// A divisor of 65536 is written as 0.
	v := uint16(d)
	p.command.Write(pitMode3)
	p.data.Write(uint8(v))
	p.data.Write(uint8(v >> 8))
}

// tick accounts for one timer interrupt and returns the nanoseconds
// it advanced the clock by.
//
//go:nosplit
func (p *pit) tick() uint64 {
	acc := p.accum + p.period
	nanos := acc / 1e6
	p.accum = acc % 1e6
	return nanos
}

// A clock keeps track of the time since boot, and allows concurrent
// readers and a single writer. The writer never blocks and the readers
// are lock-free.
//
// Uses a similar algorithm as the gettimeofday implementation in
// Linux.
type clock struct {
	// seq is the sequence number of the clock, as is incremented
	// before and after a write. An odd seq indicates a write is in
	// progress.
	seq uint64

	monotoneTime instant
}

type instant struct {
	seconds     int64
	nanoseconds uint32
}

//go:nosplit
func (c *clock) advance(nanoseconds uint64) {
	atomic.AddUint64(&c.seq, 1)
	c.monotoneTime.advance(nanoseconds)
	atomic.AddUint64(&c.seq, 1)
}

//go:nosplit
func (t *instant) advance(nanoseconds uint64) {
	nanoseconds += uint64(t.nanoseconds)
	t.seconds += int64(nanoseconds / 1e9)
	t.nanoseconds = uint32(nanoseconds % 1e9)
}

// monotone returns the time since boot. It retries while a tick is
// updating the clock.
//
//go:nosplit
func (c *clock) monotone() time.Duration {
	for {
		seq := atomic.LoadUint64(&c.seq)
		if seq&1 != 0 {
			continue
		}
		d := time.Duration(c.monotoneTime.seconds)*time.Second + time.Duration(c.monotoneTime.nanoseconds)
		if atomic.LoadUint64(&c.seq) == seq {
			return d
		}
	}
}
