// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// PS/2 keyboard decoding for scancode set 1, the set the controller
// translates to by default.

// PS2Data is the data port of the PS/2 controller.
const PS2Data = 0x60

const (
	set1Extended1   = 0xe0
	set1Extended2   = 0xe1
	set1Release     = 0x80
	set1FakeLShift  = 0x2a
	set1PauseCtrl   = 0x1d
	set1PauseLock   = 0x45
	set1ReleaseMask = 0x7f
)

// KeyState is the direction of a key transition.
type KeyState uint8

const (
	KeyUp KeyState = iota
	KeyDown
)

// KeyEvent is a key transition decoded from scancode bytes.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

// DecodedKeyKind tells the variant of a DecodedKey.
type DecodedKeyKind uint8

const (
	// Unicode keys carry a character in Rune.
	Unicode DecodedKeyKind = iota
	// RawKey keys have no character; Code names the key.
	RawKey
)

// DecodedKey is a key press after modifiers and layout.
type DecodedKey struct {
	Kind DecodedKeyKind
	Rune rune
	Code KeyCode
}

type decoderState uint8

const (
	stateIdle decoderState = iota
	stateExtended
	statePause1
	statePause2
)

type modifiers struct {
	lshift, rshift bool
	lctrl, rctrl   bool
	alt, altgr     bool
	capsLock       bool
	numLock        bool
}

func (m *modifiers) shifted() bool {
	return m.lshift || m.rshift
}

func (m *modifiers) ctrl() bool {
	return m.lctrl || m.rctrl
}

// Keyboard decodes a stream of set 1 scancode bytes with the US 104-key
// layout.
type Keyboard struct {
	state   decoderState
	mods    modifiers
	control ControlHandling
}

// NewKeyboard returns a decoder in the idle state with num lock on.
func NewKeyboard(control ControlHandling) *Keyboard {
	return &Keyboard{
		mods:    modifiers{numLock: true},
		control: control,
	}
}

// AddByte feeds one scancode byte to the decoder. It reports an event
// once a complete sequence has been received. Unknown and malformed
// sequences are dropped and the decoder returns to idle.
//
//go:nosplit
func (k *Keyboard) AddByte(b byte) (KeyEvent, bool) {
	switch k.state {
	case stateIdle:
		switch b {
		case set1Extended1:
			k.state = stateExtended
			return KeyEvent{}, false
		case set1Extended2:
			k.state = statePause1
			return KeyEvent{}, false
		}
		return lookup(set1[:], b)
	case stateExtended:
		k.state = stateIdle
		if b&set1ReleaseMask == set1FakeLShift {
			// Some keyboards wrap extended keys in fake shift
			// presses when shift or num lock is active.
			return KeyEvent{}, false
		}
		return lookup(set1Extended[:], b)
	case statePause1:
		if b&set1ReleaseMask == set1PauseCtrl {
			k.state = statePause2
		} else {
			k.state = stateIdle
		}
		return KeyEvent{}, false
	case statePause2:
		k.state = stateIdle
		if b&set1ReleaseMask != set1PauseLock {
			return KeyEvent{}, false
		}
		return KeyEvent{Code: KeyPauseBreak, State: keyState(b)}, true
	}
	k.state = stateIdle
	return KeyEvent{}, false
}

//go:nosplit
func keyState(b byte) KeyState {
	if b&set1Release != 0 {
		return KeyUp
	}
	return KeyDown
}

//go:nosplit
func lookup(table []KeyCode, b byte) (KeyEvent, bool) {
	code := b & set1ReleaseMask
	if int(code) >= len(table) || table[code] == KeyNone {
		return KeyEvent{}, false
	}
	return KeyEvent{Code: table[code], State: keyState(b)}, true
}

// ProcessKeyEvent updates the modifier state and maps key presses
// through the layout. Releases and modifier keys other than the locks
// produce no key.
//
//go:nosplit
func (k *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == KeyDown
	m := &k.mods
	switch ev.Code {
	case KeyLeftShift:
		m.lshift = down
		return DecodedKey{}, false
	case KeyRightShift:
		m.rshift = down
		return DecodedKey{}, false
	case KeyLeftControl:
		m.lctrl = down
		return DecodedKey{}, false
	case KeyRightControl:
		m.rctrl = down
		return DecodedKey{}, false
	case KeyLeftAlt:
		m.alt = down
		return DecodedKey{}, false
	case KeyRightAlt:
		m.altgr = down
		return DecodedKey{}, false
	}
	if !down {
		return DecodedKey{}, false
	}
	switch ev.Code {
	case KeyCapsLock:
		m.capsLock = !m.capsLock
		return rawKey(ev.Code), true
	case KeyNumLock:
		m.numLock = !m.numLock
		return rawKey(ev.Code), true
	}
	if n := numpad[ev.Code]; n.digit != 0 {
		if m.numLock {
			return DecodedKey{Kind: Unicode, Rune: n.digit, Code: ev.Code}, true
		}
		return rawKey(n.nav), true
	}
	km := us104[ev.Code]
	if km.normal == 0 {
		return rawKey(ev.Code), true
	}
	r := km.normal
	upper := m.shifted()
	if km.letter {
		upper = upper != m.capsLock
		if m.ctrl() && k.control == ControlMapLetters {
			return DecodedKey{Kind: Unicode, Rune: km.normal - 'a' + 1, Code: ev.Code}, true
		}
	}
	if upper {
		r = km.shifted
	}
	return DecodedKey{Kind: Unicode, Rune: r, Code: ev.Code}, true
}

// Decode feeds b to the decoder and returns the resulting key, if any.
//
//go:nosplit
func (k *Keyboard) Decode(b byte) (DecodedKey, bool) {
	ev, ok := k.AddByte(b)
	if !ok {
		return DecodedKey{}, false
	}
	return k.ProcessKeyEvent(ev)
}

//go:nosplit
func rawKey(c KeyCode) DecodedKey {
	return DecodedKey{Kind: RawKey, Code: c}
}
