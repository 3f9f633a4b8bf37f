// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Page fault error code bits.
const (
	pfProtectionViolation = 1 << 0
	pfCausedByWrite       = 1 << 1
	pfUserMode            = 1 << 2
	pfMalformedTable      = 1 << 3
	pfInstructionFetch    = 1 << 4
	pfProtectionKey       = 1 << 5
	pfShadowStack         = 1 << 6
)

var pageFaultBits = [...]struct {
	bit  uint64
	name string
}{
	{pfProtectionViolation, "PROTECTION_VIOLATION"},
	{pfCausedByWrite, "CAUSED_BY_WRITE"},
	{pfUserMode, "USER_MODE"},
	{pfMalformedTable, "MALFORMED_TABLE"},
	{pfInstructionFetch, "INSTRUCTION_FETCH"},
	{pfProtectionKey, "PROTECTION_KEY"},
	{pfShadowStack, "SHADOW_STACK"},
}

// report writes an exception report for f to out.
//
//go:nosplit
func report(out Output, name string, f *TrapFrame) {
	out.WriteString("\nEXCEPTION: ")
	out.WriteString(name)
	out.WriteString("\n")
	if f.HasErrorCode() {
		out.WriteString("error code: ")
		writeHex(out, f.ErrorCode)
		out.WriteString("\n")
	}
	writeFrame(out, f)
}

// writeFrame dumps the interrupt stack frame.
//
//go:nosplit
func writeFrame(out Output, f *TrapFrame) {
	out.WriteString("RIP = ")
	writeHex(out, f.RIP)
	out.WriteString(" CS = ")
	writeHex(out, f.CS)
	out.WriteString("\nRSP = ")
	writeHex(out, f.RSP)
	out.WriteString(" SS = ")
	writeHex(out, f.SS)
	out.WriteString("\nRFL = ")
	writeHex(out, f.RFLAGS)
	out.WriteString("\n")
}

// writePageFault writes the faulting address and the decoded error
// code of a page fault.
//
//go:nosplit
func writePageFault(out Output, addr, code uint64) {
	out.WriteString("accessed address: ")
	writeHex(out, addr)
	out.WriteString("\nreason:")
	if code&pfProtectionViolation == 0 {
		out.WriteString(" NOT_PRESENT")
	}
	for _, b := range pageFaultBits {
		if code&b.bit != 0 {
			out.WriteString(" ")
			out.WriteString(b.name)
		}
	}
	out.WriteString("\n")
}
