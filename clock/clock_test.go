package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaults(t *testing.T) {
	assert := assert.New(t)

	clk := NewClock()
	assert.Equal(DEFAULT_ACLK, clk.Hz(ACLK))
	assert.Equal(DEFAULT_DCO_HZ, clk.Hz(MCLK))
	assert.Equal(DEFAULT_DCO_HZ, clk.Hz(SMCLK))
	assert.Equal(DEFAULT_DCO_HZ, clk.DCO())

	assert.InDelta(1000.0, clk.Millis(DEFAULT_DCO_HZ), 0.001)
	assert.Equal(int64(2500), clk.CyclesIn(1.0))
	assert.Equal(1.0, clk.CyclesPer(SMCLK))
	assert.InDelta(76.29, clk.CyclesPer(ACLK), 0.01)
	assert.Equal("SMCLK", SMCLK.String())
}

func TestClockVirtualTime(t *testing.T) {
	assert := assert.New(t)

	clk := NewClock()

	vtime := clk.Time(1000)
	assert.LessOrEqual(clk.Cycles(vtime), int64(1000))
	assert.GreaterOrEqual(clk.Time(clk.Cycles(vtime)), vtime)

	target := clk.Time(0) + clk.VirtualIn(10.0)
	assert.InDelta(25000, clk.Cycles(target), 1)
}

func TestClockChange(t *testing.T) {
	assert := assert.New(t)

	clk := NewClock()

	var notified []int64
	clk.Observe(func(c *Clock, cycles int64) {
		notified = append(notified, cycles)
	})

	// 1ms at 2.5MHz, then double the MCLK.
	clk.Set(2500, 5_000_000, DEFAULT_ACLK, 5_000_000, 2_500_000)
	assert.Equal([]int64{2500}, notified)
	assert.InDelta(1.0, clk.Millis(2500), 0.001)

	// Another 1ms is 5000 cycles now.
	assert.InDelta(2.0, clk.Millis(7500), 0.001)
	assert.Equal(int64(5000), clk.CyclesIn(1.0))
	assert.Equal(2.0, clk.CyclesPer(SMCLK))

	// No change, no notification.
	clk.Set(9000, 5_000_000, DEFAULT_ACLK, 5_000_000, 2_500_000)
	assert.Equal(1, len(notified))

	clk.Reset()
	assert.Equal(DEFAULT_DCO_HZ, clk.Hz(MCLK))
	assert.Equal(0.0, clk.Millis(0))
}
