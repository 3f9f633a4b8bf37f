// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Vector is an interrupt vector number.
type Vector uint8

// Exception vectors defined by the architecture.
const (
	DivideError         Vector = 0x0
	Debug               Vector = 0x1
	NMI                 Vector = 0x2
	Breakpoint          Vector = 0x3
	Overflow            Vector = 0x4
	BoundRangeExceeded  Vector = 0x5
	InvalidOpcode       Vector = 0x6
	DeviceNotAvailable  Vector = 0x7
	DoubleFault         Vector = 0x8
	InvalidTSS          Vector = 0xa
	SegmentNotPresent   Vector = 0xb
	StackSegmentFault   Vector = 0xc
	GeneralProtection   Vector = 0xd
	PageFault           Vector = 0xe
	X87FloatingPoint    Vector = 0x10
	AlignmentCheck      Vector = 0x11
	MachineCheck        Vector = 0x12
	SIMDFloatingPoint   Vector = 0x13
	Virtualization      Vector = 0x14
	ControlProtection   Vector = 0x15
	HypervisorInjection Vector = 0x1c
	VMMCommunication    Vector = 0x1d
	Security            Vector = 0x1e

	// FirstAvailable is the first vector not reserved by the CPU.
	FirstAvailable Vector = 0x20
)

// Hardware interrupt lines of the primary controller.
const (
	TimerIRQ    = 0
	KeyboardIRQ = 1
)

// Class is the architectural behaviour of an exception.
type Class uint8

const (
	// Fault resumes at the faulting instruction.
	Fault Class = iota + 1
	// Trap resumes at the next instruction.
	Trap
	// Fatal never resumes.
	Fatal
	// Classified is decided per event; see ClassifyDebug.
	Classified
	// Hardware is an external interrupt routed through the PICs.
	Hardware
)

type vectorInfo struct {
	name      string
	errorCode bool
	class     Class
	gate      gateKind
	ist       uint8
}

// exceptions describes the CPU exceptions the kernel handles. Vectors
// with a zero class are not claimed and stay non-present.
var exceptions = [FirstAvailable]vectorInfo{
	DivideError:         {name: "DIVIDE ERROR", class: Fault, gate: interruptGate},
	Debug:               {name: "DEBUG", class: Classified, gate: trapGate},
	NMI:                 {name: "NON-MASKABLE INTERRUPT", class: Trap, gate: interruptGate},
	Breakpoint:          {name: "BREAKPOINT", class: Trap, gate: trapGate},
	Overflow:            {name: "OVERFLOW", class: Trap, gate: interruptGate},
	BoundRangeExceeded:  {name: "BOUND RANGE EXCEEDED", class: Fault, gate: interruptGate},
	InvalidOpcode:       {name: "INVALID OPCODE", class: Fault, gate: interruptGate},
	DeviceNotAvailable:  {name: "DEVICE NOT AVAILABLE", class: Fault, gate: interruptGate},
	DoubleFault:         {name: "DOUBLE FAULT", errorCode: true, class: Fatal, gate: interruptGate, ist: DoubleFaultStack},
	InvalidTSS:          {name: "INVALID TSS", errorCode: true, class: Fault, gate: interruptGate},
	SegmentNotPresent:   {name: "SEGMENT NOT PRESENT", errorCode: true, class: Fault, gate: interruptGate},
	StackSegmentFault:   {name: "STACK-SEGMENT FAULT", errorCode: true, class: Fault, gate: interruptGate},
	GeneralProtection:   {name: "GENERAL PROTECTION FAULT", errorCode: true, class: Fault, gate: interruptGate},
	PageFault:           {name: "PAGE FAULT", errorCode: true, class: Fault, gate: interruptGate},
	X87FloatingPoint:    {name: "x87 FLOATING-POINT", class: Fault, gate: interruptGate},
	AlignmentCheck:      {name: "ALIGNMENT CHECK", errorCode: true, class: Fault, gate: interruptGate},
	MachineCheck:        {name: "MACHINE CHECK", class: Fatal, gate: interruptGate},
	SIMDFloatingPoint:   {name: "SIMD FLOATING-POINT", class: Fault, gate: interruptGate},
	Virtualization:      {name: "VIRTUALIZATION", class: Fault, gate: interruptGate},
	ControlProtection:   {name: "CONTROL PROTECTION", errorCode: true, class: Fault, gate: interruptGate},
	HypervisorInjection: {name: "HYPERVISOR INJECTION", class: Fault, gate: interruptGate},
	VMMCommunication:    {name: "VMM COMMUNICATION", errorCode: true, class: Fault, gate: interruptGate},
	Security:            {name: "SECURITY", errorCode: true, class: Fault, gate: interruptGate},
}

// HasErrorCode reports whether the processor pushes an error code
// for v.
func HasErrorCode(v Vector) bool {
	return v < FirstAvailable && exceptions[v].errorCode
}

// Name returns the report name of v.
func (v Vector) Name() string {
	if v < FirstAvailable && exceptions[v].name != "" {
		return exceptions[v].name
	}
	return "INTERRUPT"
}
