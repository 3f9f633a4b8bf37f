// SPDX-License-Identifier: Unlicense OR MIT

package sim

import (
	"fmt"

	"github.com/maxgmr/tlenek/kernel"
)

// Programs, loaded at CodeBase.
var (
	// ProgBreakpoint executes INT3, then sets EAX to 42 and halts.
	ProgBreakpoint = []byte{
		0xcc,                         // int3
		0xb8, 0x2a, 0x00, 0x00, 0x00, // mov eax, 42
		0xf4,                         // hlt
	}

	// ProgStackOverflow calls itself until the stack runs out.
	ProgStackOverflow = []byte{
		0xe8, 0xfb, 0xff, 0xff, 0xff, // call .
	}

	// ProgDivideByZero divides by zero.
	ProgDivideByZero = []byte{
		0x31, 0xc9, // xor ecx, ecx
		0xf7, 0xf1, // div ecx
		0xf4,       // hlt
	}

	// ProgInvalidOpcode executes UD2.
	ProgInvalidOpcode = []byte{
		0x0f, 0x0b, // ud2
		0xf4,       // hlt
	}

	// ProgIdle halts at once.
	ProgIdle = []byte{
		0xf4, // hlt
	}
)

// Boot creates a subsystem on m that reports to the serial line,
// initializes it and enables interrupts.
func Boot(m *Machine, cfg kernel.Config) (*kernel.Subsystem, error) {
	s, err := kernel.NewSubsystem(m, kernel.NewSerial(m), cfg)
	if err != nil {
		return nil, fmt.Errorf("sim: new subsystem: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("sim: init: %w", err)
	}
	if m.State() == Reset {
		return nil, fmt.Errorf("sim: init: %w", ErrReset)
	}
	if err := s.Enable(); err != nil {
		return nil, fmt.Errorf("sim: enable: %w", err)
	}
	return s, nil
}

// Scenario is an end-to-end run of the trap core on a Machine.
type Scenario struct {
	Name        string
	Description string
	// Run drives a booted machine. The error is the one returned
	// by the machine, if any.
	Run func(m *Machine, s *kernel.Subsystem) error
}

// Scenarios returns the built-in scenarios.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "breakpoint",
			Description: "INT3 is reported and execution continues after it",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				return m.Run(ProgBreakpoint)
			},
		},
		{
			Name:        "stack-overflow",
			Description: "unbounded recursion double faults onto the reserved stack",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				return m.Run(ProgStackOverflow)
			},
		},
		{
			Name:        "timer",
			Description: "three timer interrupts are counted and acknowledged",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				for i := 0; i < 3; i++ {
					if err := m.Tick(); err != nil {
						return err
					}
				}
				return m.Run(ProgIdle)
			},
		},
		{
			Name:        "keyboard",
			Description: "scancodes for shift+h, i and enter are echoed",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				// Left shift, h, release h, release shift, i, enter.
				return m.Type(0x2a, 0x23, 0xa3, 0xaa, 0x17, 0x1c)
			},
		},
		{
			Name:        "divide-loop",
			Description: "a divide error that resumes at the same instruction",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				return m.Run(ProgDivideByZero)
			},
		},
		{
			Name:        "invalid-opcode",
			Description: "UD2 faults repeatedly",
			Run: func(m *Machine, s *kernel.Subsystem) error {
				return m.Run(ProgInvalidOpcode)
			},
		},
	}
}

// LookupScenario returns the built-in scenario called name.
func LookupScenario(name string) (Scenario, bool) {
	for _, sc := range Scenarios() {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}
