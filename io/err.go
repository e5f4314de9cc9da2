package io

import (
	"errors"

	"github.com/ezrec/msp430/translate"
)

var f = translate.From

var (
	ErrTimerIndex    = errors.New(f("timer capture/compare index out of range"))
	ErrTimerClock    = errors.New(f("timer clock source not modeled"))
	ErrWatchdogKey   = errors.New(f("watchdog password violation"))
	ErrFlashKey      = errors.New(f("flash controller key violation"))
	ErrPinRange      = errors.New(f("port pin out of range"))
	ErrUsartDisabled = errors.New(f("usart disabled"))
	ErrUsartOverrun  = errors.New(f("usart receive overrun"))
)
