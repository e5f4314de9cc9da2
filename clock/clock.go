// Package clock is the clock domain context shared by the CPU and the
// peripherals.
//
// The CPU counts MCLK cycles. Peripherals clocked from another domain
// convert through CyclesPer(). Wall clock scheduling uses a virtual time
// base, counted in ticks of the fastest DCO setting, which stays
// continuous across frequency changes.
package clock

import (
	"log"
	"math"
)

const (
	MAX_DCO_HZ     = 4_915_200 // Virtual time ticks per second.
	MIN_DCO_HZ     = 1_000     // Slowest DCO setting.
	DEFAULT_DCO_HZ = 2_500_000 // DCO frequency at power up.
	DEFAULT_ACLK   = 32_768    // LFXT1 watch crystal.
)

// Domain is a clock domain.
type Domain int

//go:generate go tool stringer -linecomment -type=Domain
const (
	ACLK  = Domain(0) // ACLK
	MCLK  = Domain(1) // MCLK
	SMCLK = Domain(2) // SMCLK
)

// Observer is notified after a frequency change.
type Observer func(clk *Clock, cycles int64)

// Clock holds the frequency of each domain.
type Clock struct {
	Verbose bool // Set to enable verbose logging.

	hz  [3]int
	dco int

	lastVTime  int64
	lastCycles int64
	factor     float64 // Virtual ticks per MCLK cycle.

	observers []Observer
}

// NewClock returns a clock at the power up frequencies.
func NewClock() (clk *Clock) {
	clk = &Clock{}
	clk.Reset()
	return
}

// Reset returns to the power up frequencies, and restarts virtual time.
func (clk *Clock) Reset() {
	clk.dco = DEFAULT_DCO_HZ
	clk.hz = [3]int{DEFAULT_ACLK, DEFAULT_DCO_HZ, DEFAULT_DCO_HZ}
	clk.lastVTime = 0
	clk.lastCycles = 0
	clk.factor = float64(MAX_DCO_HZ) / float64(clk.hz[MCLK])
}

// Hz returns the frequency of a domain.
func (clk *Clock) Hz(domain Domain) int {
	return clk.hz[domain]
}

// DCO returns the digitally controlled oscillator frequency.
func (clk *Clock) DCO() int {
	return clk.dco
}

// Observe registers a frequency change observer.
func (clk *Clock) Observe(fn Observer) {
	clk.observers = append(clk.observers, fn)
}

// Set changes the domain frequencies as of a cycle count.
// Virtual time is rebased so that it stays continuous.
func (clk *Clock) Set(cycles int64, dco, aclk, mclk, smclk int) {
	if dco == clk.dco && aclk == clk.hz[ACLK] && mclk == clk.hz[MCLK] && smclk == clk.hz[SMCLK] {
		return
	}

	clk.lastVTime = clk.Time(cycles)
	clk.lastCycles = cycles

	clk.dco = max(dco, MIN_DCO_HZ)
	clk.hz[ACLK] = max(aclk, 1)
	clk.hz[MCLK] = max(mclk, 1)
	clk.hz[SMCLK] = max(smclk, 1)
	clk.factor = float64(MAX_DCO_HZ) / float64(clk.hz[MCLK])

	if clk.Verbose {
		log.Printf("clock: dco %d aclk %d mclk %d smclk %d", clk.dco, clk.hz[ACLK], clk.hz[MCLK], clk.hz[SMCLK])
	}

	for _, fn := range clk.observers {
		fn(clk, cycles)
	}
}

// Time returns the virtual time at a cycle count.
func (clk *Clock) Time(cycles int64) int64 {
	return clk.lastVTime + int64(float64(cycles-clk.lastCycles)*clk.factor)
}

// Cycles returns the first cycle count at which a virtual time is reached.
func (clk *Clock) Cycles(vtime int64) int64 {
	delta := float64(vtime-clk.lastVTime) / clk.factor
	return clk.lastCycles + int64(math.Ceil(delta))
}

// Millis returns the elapsed wall clock milliseconds at a cycle count.
func (clk *Clock) Millis(cycles int64) float64 {
	return 1000.0 * float64(clk.Time(cycles)) / MAX_DCO_HZ
}

// VirtualIn returns the virtual time span of some milliseconds.
func (clk *Clock) VirtualIn(msec float64) int64 {
	return int64(msec * MAX_DCO_HZ / 1000.0)
}

// CyclesIn returns the number of MCLK cycles in some milliseconds at the
// current frequency.
func (clk *Clock) CyclesIn(msec float64) int64 {
	return int64(math.Round(msec * float64(clk.hz[MCLK]) / 1000.0))
}

// CyclesPer returns the number of MCLK cycles in one tick of a domain.
func (clk *Clock) CyclesPer(domain Domain) float64 {
	return float64(clk.hz[MCLK]) / float64(clk.hz[domain])
}
