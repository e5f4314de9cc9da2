package io

import (
	"io"
)

// Tape is the byte stream endpoint of a serial port. Input bytes come
// from a channel, polled without blocking, and output bytes go to a
// writer.
type Tape struct {
	Input  <-chan byte
	Output io.Writer

	Sent     int // Bytes written to Output.
	Received int // Bytes taken from Input.
}

// Receive returns the next input byte, if one is waiting.
func (tp *Tape) Receive() (value byte, ok bool) {
	if tp == nil || tp.Input == nil {
		return
	}

	select {
	case value, ok = <-tp.Input:
		if ok {
			tp.Received++
		}
	default:
	}

	return
}

// Send writes a byte to the output stream.
func (tp *Tape) Send(value byte) (err error) {
	if tp == nil || tp.Output == nil {
		return
	}

	_, err = tp.Output.Write([]byte{value})
	if err != nil {
		return
	}

	tp.Sent++

	return
}

// ReaderChannel returns a channel fed with the bytes of a reader by a
// goroutine. The channel is closed at the end of the reader, or on error.
func ReaderChannel(r io.Reader) <-chan byte {
	ch := make(chan byte, 64)

	go func() {
		defer close(ch)
		var buf [64]byte
		for {
			n, err := r.Read(buf[:])
			for _, b := range buf[:n] {
				ch <- b
			}
			if err != nil {
				return
			}
		}
	}()

	return ch
}

// BytesChannel returns a closed channel holding a fixed input.
func BytesChannel(data []byte) <-chan byte {
	ch := make(chan byte, len(data))
	for _, b := range data {
		ch <- b
	}
	close(ch)
	return ch
}
