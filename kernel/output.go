// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// COM1 is the data port of the first serial line.
const COM1 = 0x3f8

// Output is the diagnostic sink. Implementations must not allocate
// or block; they are called from interrupt context.
type Output interface {
	Write(b []byte)
	WriteString(s string)
}

// Serial writes to a serial port data register, one byte per write.
type Serial struct {
	port Port
}

// NewSerial returns the serial output on the COM1 line of m.
func NewSerial(m Machine) *Serial {
	return &Serial{port: m.Port(COM1)}
}

//go:nosplit
func (s *Serial) Write(b []byte) {
	for i := 0; i < len(b); i++ {
		s.port.Write(b[i])
	}
}

//go:nosplit
func (s *Serial) WriteString(str string) {
	for i := 0; i < len(str); i++ {
		s.port.Write(str[i])
	}
}

// writeHex writes v in hexadecimal with a 0x prefix and without
// leading zeros.
//
//go:nosplit
func writeHex(out Output, v uint64) {
	var buf [18]byte
	buf[0], buf[1] = '0', 'x'
	n := 2
	onlyZero := true
	for i := 15; i >= 0; i-- {
		// Extract the ith nibble.
		nib := byte((v >> (i * 4)) & 0xf)
		if onlyZero && i > 0 && nib == 0 {
			// Skip leading zeros.
			continue
		}
		onlyZero = false
		switch {
		case nib <= 9:
			buf[n] = nib + '0'
		default:
			buf[n] = nib - 10 + 'a'
		}
		n++
	}
	out.Write(buf[:n])
}

//go:nosplit
func writeDecimal(out Output, v uint64) {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte(v%10) + '0'
		v /= 10
		if v == 0 {
			break
		}
	}
	out.Write(buf[i:])
}
