package util

import (
	"bufio"
	"io"
	"log"
)

// SafeReadLine blocks until a whole line can be read or
// r returns an error. Lines are expected to be \n separated,
// a trailing \r is kept.
func SafeReadLine(r *bufio.Reader) (line []byte, err error) {
	line, err = r.ReadBytes('\n')
	if len(line) > 0 && line[len(line)-1] == '\n' {
		// strip the \n
		line = line[:len(line)-1]
	}
	return
}

// Exhaust reads at most n identifiers from r and sends them
// on the returned channel, empty lines are skipped.
// The format of an identifier is string\n
func Exhaust(n int64, r io.Reader) <-chan []byte {
	// make the output channel
	var identifiers = make(chan []byte)
	// wrap r in a bufio reader
	src := bufio.NewReader(r)
	go func() {
		defer close(identifiers)
		for i := int64(0); i < n; i++ {
			identifier, err := SafeReadLine(src)
			if len(identifier) != 0 {
				identifiers <- identifier
			}
			if err != nil {
				if err != io.EOF {
					log.Printf("error reading identifiers: %v", err)
				}
				return
			}
		}
	}()

	return identifiers
}
