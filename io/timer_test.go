package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
)

const (
	testTACTL   = uint32(0x0160)
	testTACCTL0 = uint32(0x0162)
	testTACCTL1 = uint32(0x0164)
	testTACCTL2 = uint32(0x0166)
	testTAR     = uint32(0x0170)
	testTACCR0  = uint32(0x0172)
	testTACCR1  = uint32(0x0174)
	testTACCR2  = uint32(0x0176)
	testTAIV    = uint32(0x012e)

	testSMCLK      = 0x0200
	testContinuous = testSMCLK | 0x0020
	testUp         = testSMCLK | 0x0010
	testUpDown     = testSMCLK | 0x0030
)

// newTestTimer creates an idle CPU with Timer_A3.
func newTestTimer(t *testing.T) (c *cpu.Cpu, tm *Timer) {
	c = newTestCpu(t)

	tm, err := NewTimer(c, TIMER_A3)
	require.NoError(t, err)

	idle(c)

	return
}

func TestTimerContinuous(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACCR1, 100, bus.WORD)
	c.Bus.Write(testTACTL, testContinuous, bus.WORD)
	assert.Equal(TIMER_CONTINUOUS, tm.Mode())

	require.NoError(t, c.Run(99))
	assert.Equal(uint16(99), tm.Counter())
	assert.Zero(tm.CCTL(1) & CCTL_CCIFG)

	require.NoError(t, c.Run(100))
	assert.Equal(uint16(100), tm.Counter())
	assert.Equal(uint32(100), c.Bus.Read(testTAR, bus.WORD))
	assert.Equal(CCTL_CCIFG, tm.CCTL(1)&CCTL_CCIFG)

	// The next match is a whole counter period later.
	assert.Equal(int64(100+0x10000), tm.events[1].Time())

	// A compare value already passed matches after the wrap.
	require.NoError(t, c.Run(200))
	c.Bus.Write(testTACCR2, 150, bus.WORD)
	assert.Equal(int64(200+0x10000-50), tm.events[2].Time())

	// The overflow sets TAIFG when the counter wraps to zero.
	assert.Equal(int64(0x10000), tm.events[tagOverflow].Time())
	require.NoError(t, c.Run(0x10000))
	assert.Equal(uint32(0x0221), c.Bus.Read(testTACTL, bus.WORD))
	assert.Equal(uint16(0), tm.Counter())

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerUp(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACCR0, 9, bus.WORD)
	c.Bus.Write(testTACTL, testUp, bus.WORD)

	require.NoError(t, c.Run(9))
	assert.Equal(uint16(9), tm.Counter())
	assert.Equal(CCTL_CCIFG, tm.CCTL(0)&CCTL_CCIFG)
	assert.Zero(tm.ctl & TIMER_IFG)

	require.NoError(t, c.Run(10))
	assert.Equal(uint16(0), tm.Counter())
	assert.Equal(TIMER_IFG, tm.ctl&TIMER_IFG)

	require.NoError(t, c.Run(15))
	assert.Equal(uint16(5), tm.Counter())

	// Lowering CCR0 below the counter restarts the count.
	c.Bus.Write(testTACCR0, 3, bus.WORD)
	assert.Equal(uint16(0), tm.Counter())
	require.NoError(t, c.Run(17))
	assert.Equal(uint16(2), tm.Counter())

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerUpFromContinuous(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACTL, testContinuous, bus.WORD)
	require.NoError(t, c.Run(50))
	c.Bus.Write(testTACCR0, 20, bus.WORD)
	assert.Equal(uint16(50), tm.Counter())

	c.Bus.Write(testTACTL, testUp, bus.WORD)
	assert.Equal(TIMER_UP, tm.Mode())
	assert.Equal(uint16(0), tm.Counter())

	require.NoError(t, c.Run(70))
	assert.Equal(uint16(20), tm.Counter())
	require.NoError(t, c.Run(71))
	assert.Equal(uint16(0), tm.Counter())
}

func TestTimerUpDown(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACCR0, 10, bus.WORD)
	c.Bus.Write(testTACCR1, 4, bus.WORD)
	c.Bus.Write(testTACTL, testUpDown, bus.WORD)

	table := [](struct {
		cycles  int64
		counter uint16
		ccifg   bool
	}){
		{3, 3, false},
		{4, 4, true},
		{10, 10, false},
		{15, 5, false},
		{16, 4, true},
		{20, 0, false},
		{24, 4, true},
	}

	for _, entry := range table {
		require.NoError(t, c.Run(entry.cycles))
		assert.Equal(entry.counter, tm.Counter(), "%d", entry.cycles)
		assert.Equal(entry.ccifg, (tm.CCTL(1)&CCTL_CCIFG) != 0, "%d", entry.cycles)
		c.Bus.Write(testTACCTL1, 0, bus.WORD)
	}

	assert.Equal(TIMER_IFG, tm.ctl&TIMER_IFG)

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerStopClear(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACTL, testContinuous, bus.WORD)
	require.NoError(t, c.Run(30))

	c.Bus.Write(testTACTL, testSMCLK, bus.WORD)
	assert.Equal(TIMER_STOP, tm.Mode())
	require.NoError(t, c.Run(50))
	assert.Equal(uint16(30), tm.Counter())

	c.Bus.Write(testTACTL, testContinuous, bus.WORD)
	require.NoError(t, c.Run(60))
	assert.Equal(uint16(40), tm.Counter())

	c.Bus.Write(testTACTL, testContinuous|uint32(TIMER_CLR), bus.WORD)
	assert.Equal(uint16(0), tm.Counter())
	assert.Equal(uint32(testContinuous), c.Bus.Read(testTACTL, bus.WORD))

	c.Bus.Write(testTAR, 0x1000, bus.WORD)
	require.NoError(t, c.Run(70))
	assert.Equal(uint16(0x100a), tm.Counter())

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerDivider(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	// SMCLK / 8
	c.Bus.Write(testTACCR1, 10, bus.WORD)
	c.Bus.Write(testTACTL, testContinuous|0x00c0, bus.WORD)

	require.NoError(t, c.Run(79))
	assert.Equal(uint16(9), tm.Counter())
	require.NoError(t, c.Run(80))
	assert.Equal(uint16(10), tm.Counter())
	assert.Equal(CCTL_CCIFG, tm.CCTL(1)&CCTL_CCIFG)
}

func TestTimerClockChange(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	_, err := NewBasicClock(c)
	require.NoError(t, err)
	tm, err := NewTimer(c, TIMER_A3)
	require.NoError(t, err)
	idle(c)

	c.Bus.Write(testTACTL, testContinuous, bus.WORD)
	require.NoError(t, c.Run(100))
	assert.Equal(uint16(100), tm.Counter())

	// SMCLK = DCO / 2, MCLK = DCO
	c.Bus.Write(BCM_BCSCTL2, 0x02, bus.BYTE)
	require.NoError(t, c.Run(200))
	assert.Equal(uint16(150), tm.Counter())

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerInterrupt(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	c.Bus.Write(testTACCR0, 50, bus.WORD)
	c.Bus.Write(testTACCTL0, uint32(CCTL_CCIE), bus.WORD)
	c.Bus.Write(testTACTL, testContinuous, bus.WORD)

	require.NoError(t, c.Run(50))
	assert.True(c.Pending(TIMER_A3.Vector0))
	assert.False(c.Pending(TIMER_A3.Vector1))

	tm.InterruptAccepted(TIMER_A3.Vector0)
	assert.Zero(tm.CCTL(0) & CCTL_CCIFG)
	assert.False(c.Pending(TIMER_A3.Vector0))
}

func TestTimerIV(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	both := uint32(CCTL_CCIE | CCTL_CCIFG)
	c.Bus.Write(testTACCTL1, both, bus.WORD)
	c.Bus.Write(testTACCTL2, both, bus.WORD)
	c.Bus.Write(testTACTL, testSMCLK|uint32(TIMER_IE|TIMER_IFG), bus.WORD)
	assert.True(c.Pending(TIMER_A3.Vector1))

	assert.Equal(uint32(0x02), c.Bus.Read(testTAIV, bus.WORD))
	assert.Equal(uint32(0x04), c.Bus.Read(testTAIV, bus.WORD))
	assert.True(c.Pending(TIMER_A3.Vector1))
	assert.Equal(uint32(0x0a), c.Bus.Read(testTAIV, bus.WORD))
	assert.False(c.Pending(TIMER_A3.Vector1))
	assert.Equal(uint32(0x00), c.Bus.Read(testTAIV, bus.WORD))

	// A flag without its enable is not in the vector.
	c.Bus.Write(testTACCTL1, uint32(CCTL_CCIFG), bus.WORD)
	assert.Equal(uint32(0x00), c.Bus.Read(testTAIV, bus.WORD))
	assert.Equal(CCTL_CCIFG, tm.CCTL(1)&CCTL_CCIFG)

	// Writing clears the highest pending flag.
	c.Bus.Write(testTACCTL2, both, bus.WORD)
	c.Bus.Write(testTAIV, 0, bus.WORD)
	assert.Zero(tm.CCTL(2) & CCTL_CCIFG)

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerCapture(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	// Rising edge capture of CCI1A.
	c.Bus.Write(testTACCTL1, 0x4100, bus.WORD)
	c.Bus.Write(testTACTL, testContinuous, bus.WORD)

	require.NoError(t, c.Run(30))
	tm.Capture(1, CCI_A, true)
	assert.Equal(uint16(30), tm.CCR(1))
	assert.Equal(CCTL_CCIFG|CCTL_CCI, tm.CCTL(1)&(CCTL_CCIFG|CCTL_CCI|CCTL_COV))

	require.NoError(t, c.Run(35))
	tm.Capture(1, CCI_A, false)
	assert.Equal(uint16(30), tm.CCR(1))

	// Input B is not selected.
	tm.Capture(1, CCI_B, true)
	assert.Equal(uint16(30), tm.CCR(1))

	require.NoError(t, c.Run(40))
	tm.Capture(1, CCI_A, true)
	assert.Equal(uint16(40), tm.CCR(1))
	assert.Equal(CCTL_COV, tm.CCTL(1)&CCTL_COV)

	// Software capture, both edges, through GND and VCC.
	c.Bus.Write(testTACCTL2, 0xe100, bus.WORD)
	require.NoError(t, c.Run(45))
	c.Bus.Write(testTACCTL2, 0xf100, bus.WORD)
	assert.Equal(uint16(45), tm.CCR(2))
	assert.Equal(uint32(45), c.Bus.Read(testTACCR2, bus.WORD))

	require.NoError(t, c.Bus.Logger.Err())
}

func TestTimerCaptureACLK(t *testing.T) {
	assert := assert.New(t)

	c, tm := newTestTimer(t)

	// Rising edge capture of CCI2B, which is ACLK.
	c.Bus.Write(testTACCTL2, 0x5100, bus.WORD)
	c.Bus.Write(testTACTL, testContinuous, bus.WORD)

	require.NoError(t, c.Run(100))
	assert.Equal(uint16(77), tm.CCR(2))
	assert.Zero(tm.CCTL(2) & CCTL_COV)

	require.NoError(t, c.Run(160))
	assert.Equal(uint16(153), tm.CCR(2))
	assert.Equal(CCTL_COV, tm.CCTL(2)&CCTL_COV)
}

func TestTimerFaults(t *testing.T) {
	assert := assert.New(t)

	c, _ := newTestTimer(t)

	// TACCR5 does not exist on Timer_A3.
	assert.Equal(uint32(0), c.Bus.Read(0x017c, bus.WORD))
	err := c.Bus.Logger.Err()
	assert.ErrorIs(err, &bus.ErrWarning{Kind: bus.WARN_PERIPHERAL})
	assert.ErrorContains(err, ErrTimerIndex.Error())

	// TACLK is not modeled.
	c.Bus.Write(testTACTL, 0x0020, bus.WORD)
	err = c.Bus.Logger.Err()
	assert.ErrorContains(err, ErrTimerClock.Error())
}

func TestTimerDefines(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	tb, err := NewTimer(c, TIMER_B7)
	require.NoError(t, err)

	defines := map[string]string{}
	for key, value := range tb.Defines() {
		defines[key] = value
	}

	assert.Equal("0x0180", defines["TBCTL"])
	assert.Equal("0x0190", defines["TBR"])
	assert.Equal("0x019e", defines["TBCCR6"])
	assert.Equal("0x011e", defines["TBIV"])
	assert.Equal("13", defines["TIMERB0_VECTOR"])
	assert.Equal("0x1800", defines["CNTL_3"])
}
