// SPDX-License-Identifier: Unlicense OR MIT

// Command tlenek is the kernel main. The boot glue enters it in ring 0
// with paging enabled and interrupts disabled; it loads the trap core,
// checks that a breakpoint returns and idles until an interrupt
// arrives.
package main

import "github.com/maxgmr/tlenek/kernel"

func main() {
	var m kernel.Bare
	out := kernel.NewSerial(m)
	s, err := kernel.NewSubsystem(m, out, kernel.DefaultConfig())
	if err != nil {
		fatal(out, m, err)
	}
	if err := s.Init(); err != nil {
		fatal(out, m, err)
	}
	if err := s.Enable(); err != nil {
		fatal(out, m, err)
	}
	m.Breakpoint()
	out.WriteString("trap core loaded\n")
	for {
		m.Halt()
	}
}

func fatal(out kernel.Output, m kernel.Bare, err error) {
	out.WriteString("fatal error: ")
	out.WriteString(err.Error())
	out.WriteString("\n")
	m.DisableInterrupts()
	for {
		m.Halt()
	}
}
