// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// TrapFrame is the processor state captured on entry to a handler.
// Handlers must treat it as read-only.
type TrapFrame struct {
	Vector Vector
	// ErrorCode is the architectural error code, valid only when
	// HasErrorCode reports true.
	ErrorCode uint64

	RIP    uint64
	CS     uint64
	RFLAGS uint64
	RSP    uint64
	SS     uint64
}

// HasErrorCode reports whether the processor pushed an error code for
// the frame's vector.
func (f *TrapFrame) HasErrorCode() bool {
	return HasErrorCode(f.Vector)
}

// HandlerKind tells whether a handler returns to the interrupted code.
type HandlerKind uint8

const (
	// Returning handlers resume the interrupted code.
	Returning HandlerKind = iota
	// Diverging handlers never return; the dispatcher parks the
	// processor with the handler's reason once Func completes.
	Diverging
)

// Handler is bound to a vector.
type Handler struct {
	Kind HandlerKind
	// Reason is reported when a diverging handler parks.
	Reason string
	// Func runs in interrupt context. It may be nil for a diverging
	// handler that only parks.
	Func func(s *Subsystem, f *TrapFrame)
}

// Returns wraps fn in a returning handler.
func Returns(fn func(s *Subsystem, f *TrapFrame)) Handler {
	return Handler{Kind: Returning, Func: fn}
}

// Diverges wraps fn in a diverging handler that parks with reason.
func Diverges(reason string, fn func(s *Subsystem, f *TrapFrame)) Handler {
	return Handler{Kind: Diverging, Reason: reason, Func: fn}
}

func (h Handler) bound() bool {
	return h.Func != nil || h.Kind == Diverging
}
