package io

import (
	"math"
)

// ticker counts the ticks of a peripheral clock, in MCLK cycles.
// A zero period is a stopped clock.
type ticker struct {
	period float64 // MCLK cycles per tick.
	base   int64   // Cycle count of the last rebase.
	ticks  int64   // Ticks counted at the base.
}

// at returns the tick count at a cycle count.
func (tk *ticker) at(cycles int64) int64 {
	if tk.period <= 0 || cycles <= tk.base {
		return tk.ticks
	}
	return tk.ticks + int64(float64(cycles-tk.base)/tk.period)
}

// rebase changes the period as of a cycle count, keeping the count and
// the partial tick in progress.
func (tk *ticker) rebase(cycles int64, period float64) {
	var frac float64
	if tk.period > 0 && cycles > tk.base {
		elapsed := float64(cycles-tk.base) / tk.period
		whole := math.Floor(elapsed)
		tk.ticks += int64(whole)
		frac = elapsed - whole
	}

	tk.base = cycles - int64(frac*period)
	tk.period = period
}

// restart sets the count as of a cycle count, dropping any partial tick.
func (tk *ticker) restart(cycles int64, ticks int64) {
	tk.base = cycles
	tk.ticks = ticks
}

// cycleOf returns the first cycle count at which the count reaches
// 'ticks'. The clock must be running.
func (tk *ticker) cycleOf(ticks int64) (cycles int64) {
	cycles = tk.base + int64(math.Ceil(float64(ticks-tk.ticks)*tk.period))
	for tk.at(cycles) < ticks {
		cycles++
	}
	return
}

// running returns true if the clock is ticking.
func (tk *ticker) running() bool {
	return tk.period > 0
}
