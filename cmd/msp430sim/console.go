package main

import (
	"bytes"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/ezrec/msp430/io"
)

// CONSOLE_ESCAPE quits the emulator from a raw terminal (Ctrl-]).
const CONSOLE_ESCAPE = 0x1d

// console connects a USART tape to the terminal or to files.
type console struct {
	fd    int
	state *term.State
	files []*os.File
}

// crlf translates line feeds for a terminal in raw mode.
type crlf struct {
	out *os.File
}

func (w crlf) Write(data []byte) (n int, err error) {
	_, err = w.out.Write(bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n")))
	if err != nil {
		return
	}
	n = len(data)
	return
}

// openConsole opens the console streams of a tape. On a terminal, the
// input is in raw mode, and CONSOLE_ESCAPE calls 'quit'.
func openConsole(tape *io.Tape, input string, output string, quit func()) (con *console, err error) {
	con = &console{fd: -1}
	defer func() {
		if err != nil {
			con.Close()
			con = nil
		}
	}()

	if input == "-" {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			con.state, err = term.MakeRaw(fd)
			if err != nil {
				return
			}
			con.fd = fd
			log.Printf("msp430sim: console on usart, Ctrl-] to quit\r")
			tape.Input = escaped(io.ReaderChannel(os.Stdin), quit)
		} else {
			tape.Input = io.ReaderChannel(os.Stdin)
		}
	} else {
		var inf *os.File
		inf, err = os.Open(input)
		if err != nil {
			return
		}
		con.files = append(con.files, inf)
		tape.Input = io.ReaderChannel(inf)
	}

	if output == "-" {
		if con.state != nil {
			tape.Output = crlf{out: os.Stdout}
		} else {
			tape.Output = os.Stdout
		}
	} else {
		var ouf *os.File
		ouf, err = os.Create(output)
		if err != nil {
			return
		}
		con.files = append(con.files, ouf)
		tape.Output = ouf
	}

	return
}

// escaped forwards the bytes of a channel until CONSOLE_ESCAPE.
func escaped(in <-chan byte, quit func()) <-chan byte {
	out := make(chan byte, cap(in))

	go func() {
		defer close(out)
		for b := range in {
			if b == CONSOLE_ESCAPE {
				quit()
				return
			}
			out <- b
		}
	}()

	return out
}

// Close restores the terminal, and closes the console files.
func (con *console) Close() (err error) {
	if con.state != nil {
		err = term.Restore(con.fd, con.state)
		con.state = nil
	}

	for _, file := range con.files {
		file.Close()
	}
	con.files = nil

	return
}
