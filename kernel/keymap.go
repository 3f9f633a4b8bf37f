// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// KeyCode identifies a physical key, independent of layout.
type KeyCode uint8

const (
	KeyNone KeyCode = iota
	KeyEscape
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEquals
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyBracketLeft
	KeyBracketRight
	KeyEnter
	KeyLeftControl
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyQuote
	KeyBackTick
	KeyLeftShift
	KeyBackSlash
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyPeriod
	KeySlash
	KeyRightShift
	KeyNumpadMultiply
	KeyLeftAlt
	KeySpace
	KeyCapsLock
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyNumLock
	KeyScrollLock
	KeyNumpad7
	KeyNumpad8
	KeyNumpad9
	KeyNumpadSubtract
	KeyNumpad4
	KeyNumpad5
	KeyNumpad6
	KeyNumpadAdd
	KeyNumpad1
	KeyNumpad2
	KeyNumpad3
	KeyNumpad0
	KeyNumpadPeriod
	KeyOem102
	KeyF11
	KeyF12

	// Keys reached through the 0xe0 prefix.
	KeyNumpadEnter
	KeyRightControl
	KeyNumpadDivide
	KeyPrintScreen
	KeyRightAlt
	KeyHome
	KeyArrowUp
	KeyPageUp
	KeyArrowLeft
	KeyArrowRight
	KeyEnd
	KeyArrowDown
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyLeftWin
	KeyRightWin
	KeyApps

	KeyPauseBreak

	numKeyCodes
)

// set1 maps single byte Set 1 make codes to keys. The make codes
// from 0x01 to 0x53 follow the key order above.
var set1 = func() (t [0x59]KeyCode) {
	for c := KeyEscape; c <= KeyNumpadPeriod; c++ {
		t[c] = c
	}
	t[0x56] = KeyOem102
	t[0x57] = KeyF11
	t[0x58] = KeyF12
	return t
}()

// set1Extended maps make codes following a 0xe0 prefix.
var set1Extended = [0x5e]KeyCode{
	0x1c: KeyNumpadEnter,
	0x1d: KeyRightControl,
	0x35: KeyNumpadDivide,
	0x37: KeyPrintScreen,
	0x38: KeyRightAlt,
	0x47: KeyHome,
	0x48: KeyArrowUp,
	0x49: KeyPageUp,
	0x4b: KeyArrowLeft,
	0x4d: KeyArrowRight,
	0x4f: KeyEnd,
	0x50: KeyArrowDown,
	0x51: KeyPageDown,
	0x52: KeyInsert,
	0x53: KeyDelete,
	0x5b: KeyLeftWin,
	0x5c: KeyRightWin,
	0x5d: KeyApps,
}

type keyMapping struct {
	normal, shifted rune
	// letter keys follow caps lock and control mapping.
	letter bool
}

// us104 is the US 104-key layout.
var us104 = [numKeyCodes]keyMapping{
	KeyEscape:       {normal: 0x1b, shifted: 0x1b},
	Key1:            {normal: '1', shifted: '!'},
	Key2:            {normal: '2', shifted: '@'},
	Key3:            {normal: '3', shifted: '#'},
	Key4:            {normal: '4', shifted: '$'},
	Key5:            {normal: '5', shifted: '%'},
	Key6:            {normal: '6', shifted: '^'},
	Key7:            {normal: '7', shifted: '&'},
	Key8:            {normal: '8', shifted: '*'},
	Key9:            {normal: '9', shifted: '('},
	Key0:            {normal: '0', shifted: ')'},
	KeyMinus:        {normal: '-', shifted: '_'},
	KeyEquals:       {normal: '=', shifted: '+'},
	KeyBackspace:    {normal: 0x08, shifted: 0x08},
	KeyTab:          {normal: '\t', shifted: '\t'},
	KeyQ:            {'q', 'Q', true},
	KeyW:            {'w', 'W', true},
	KeyE:            {'e', 'E', true},
	KeyR:            {'r', 'R', true},
	KeyT:            {'t', 'T', true},
	KeyY:            {'y', 'Y', true},
	KeyU:            {'u', 'U', true},
	KeyI:            {'i', 'I', true},
	KeyO:            {'o', 'O', true},
	KeyP:            {'p', 'P', true},
	KeyBracketLeft:  {normal: '[', shifted: '{'},
	KeyBracketRight: {normal: ']', shifted: '}'},
	KeyEnter:        {normal: '\n', shifted: '\n'},
	KeyA:            {'a', 'A', true},
	KeyS:            {'s', 'S', true},
	KeyD:            {'d', 'D', true},
	KeyF:            {'f', 'F', true},
	KeyG:            {'g', 'G', true},
	KeyH:            {'h', 'H', true},
	KeyJ:            {'j', 'J', true},
	KeyK:            {'k', 'K', true},
	KeyL:            {'l', 'L', true},
	KeySemicolon:    {normal: ';', shifted: ':'},
	KeyQuote:        {normal: '\'', shifted: '"'},
	KeyBackTick:     {normal: '`', shifted: '~'},
	KeyBackSlash:    {normal: '\\', shifted: '|'},
	KeyZ:            {'z', 'Z', true},
	KeyX:            {'x', 'X', true},
	KeyC:            {'c', 'C', true},
	KeyV:            {'v', 'V', true},
	KeyB:            {'b', 'B', true},
	KeyN:            {'n', 'N', true},
	KeyM:            {'m', 'M', true},
	KeyComma:        {normal: ',', shifted: '<'},
	KeyPeriod:       {normal: '.', shifted: '>'},
	KeySlash:        {normal: '/', shifted: '?'},
	KeySpace:        {normal: ' ', shifted: ' '},
	KeyOem102:       {normal: '\\', shifted: '|'},
	KeyDelete:       {normal: 0x7f, shifted: 0x7f},

	KeyNumpadMultiply: {normal: '*', shifted: '*'},
	KeyNumpadSubtract: {normal: '-', shifted: '-'},
	KeyNumpadAdd:      {normal: '+', shifted: '+'},
	KeyNumpadDivide:   {normal: '/', shifted: '/'},
	KeyNumpadEnter:    {normal: '\n', shifted: '\n'},
}

// numpad maps keypad keys to their digit when num lock is on, and to
// the navigation key they double as when it is off.
var numpad = [numKeyCodes]struct {
	digit rune
	nav   KeyCode
}{
	KeyNumpad0:      {'0', KeyInsert},
	KeyNumpad1:      {'1', KeyEnd},
	KeyNumpad2:      {'2', KeyArrowDown},
	KeyNumpad3:      {'3', KeyPageDown},
	KeyNumpad4:      {'4', KeyArrowLeft},
	KeyNumpad5:      {'5', KeyNumpad5},
	KeyNumpad6:      {'6', KeyArrowRight},
	KeyNumpad7:      {'7', KeyHome},
	KeyNumpad8:      {'8', KeyArrowUp},
	KeyNumpad9:      {'9', KeyPageUp},
	KeyNumpadPeriod: {'.', KeyDelete},
}
