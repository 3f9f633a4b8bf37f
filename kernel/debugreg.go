// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// DR6 status bits.
const (
	dr6B0 = 1 << 0
	dr6B1 = 1 << 1
	dr6B2 = 1 << 2
	dr6B3 = 1 << 3
	// Debug register access detected.
	dr6BD = 1 << 13
	// Single step.
	dr6BS = 1 << 14
	// Task switch.
	dr6BT = 1 << 15
)

// DR7 local and global breakpoint enables. L_n is bit 2n, G_n is bit
// 2n+1.
const (
	dr7L0 = 1 << 0
	dr7G0 = 1 << 1
	dr7L1 = 1 << 2
	dr7G1 = 1 << 3
	dr7L2 = 1 << 4
	dr7G2 = 1 << 5
	dr7L3 = 1 << 6
	dr7G3 = 1 << 7
)

// DebugEvent is the class of a debug exception.
type DebugEvent uint8

const (
	DebugNone DebugEvent = iota
	DebugFault
	DebugTrap
)

func (e DebugEvent) String() string {
	switch e {
	case DebugFault:
		return "fault"
	case DebugTrap:
		return "trap"
	default:
		return "none"
	}
}

// debugBreakpoints lists, in priority order, the breakpoint status
// bits and the enable bits checked for them. Breakpoint 3 is tested
// against L3 and G2, not G3.
var debugBreakpoints = [4]struct {
	status uint64
	enable uint64
}{
	{dr6B0, dr7L0 | dr7G0},
	{dr6B1, dr7L1 | dr7G1},
	{dr6B2, dr7L2 | dr7G2},
	{dr6B3, dr7L3 | dr7G2},
}

// ClassifyDebug classifies a debug exception from snapshots of DR6
// and DR7. An enabled hardware breakpoint is a data breakpoint and
// traps; a breakpoint without an enable bit is an execution breakpoint
// and faults.
//
//go:nosplit
func ClassifyDebug(dr6, dr7 uint64) DebugEvent {
	if dr6&dr6BD != 0 {
		return DebugFault
	}
	for _, bp := range debugBreakpoints {
		if dr6&bp.status == 0 {
			continue
		}
		if dr7&bp.enable != 0 {
			return DebugTrap
		}
		return DebugFault
	}
	if dr6&(dr6BS|dr6BT) != 0 {
		return DebugTrap
	}
	return DebugNone
}
