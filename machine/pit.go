// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package machine

// PITBase is the input clock of the programmable interval timer, in Hz.
const PITBase = 1193182

// A PIT is channel 0 of the programmable interval timer wired to IRQ 0.
// The kernel registers a single callback; Fire is the hardware raising
// the interrupt line.
type PIT struct {
	divisor uint16
	fn      func()
	fired   uint64
	eoi     uint64
}

// SetDivisor programs the reload value. A divisor of 0 is treated as 1.
func (p *PIT) SetDivisor(d uint16) {
	if d == 0 {
		d = 1
	}
	p.divisor = d
}

// Hz returns the interrupt frequency.
func (p *PIT) Hz() uint32 {
	if p.divisor == 0 {
		return PITBase
	}
	return PITBase / uint32(p.divisor)
}

// Period returns the time between interrupts in nanoseconds.
func (p *PIT) Period() uint64 {
	return 1000000000 / uint64(p.Hz())
}

// SetCallback installs the IRQ 0 handler.
func (p *PIT) SetCallback(fn func()) {
	p.fn = fn
}

// Fire raises IRQ 0. The end of interrupt is acknowledged before the
// handler runs: the handler may switch tasks and not return until
// much later.
func (p *PIT) Fire() {
	p.fired++
	p.eoi++
	if p.fn != nil {
		p.fn()
	}
}

// Fired returns the number of interrupts raised so far.
func (p *PIT) Fired() uint64 {
	return p.fired
}
