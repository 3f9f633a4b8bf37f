// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import "sync/atomic"

// irqLock is a spin lock held with interrupts disabled, so an
// interrupt handler can never spin on a lock held by the code it
// interrupted.
type irqLock struct {
	state uint32
}

// lock disables interrupts and acquires l. The returned value must be
// passed to unlock.
//
//go:nosplit
func (l *irqLock) lock(m Machine) (restoreIF bool) {
	restoreIF = m.InterruptsEnabled()
	if restoreIF {
		m.DisableInterrupts()
	}
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
	return restoreIF
}

// unlock releases l and re-enables interrupts if lock disabled them.
//
//go:nosplit
func (l *irqLock) unlock(m Machine, restoreIF bool) {
	atomic.StoreUint32(&l.state, 0)
	if restoreIF {
		m.EnableInterrupts()
	}
}

//go:nosplit
func (l *irqLock) held() bool {
	return atomic.LoadUint32(&l.state) != 0
}
