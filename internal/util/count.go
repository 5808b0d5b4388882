package util

import (
	"bufio"
	"fmt"
	"io"
)

// CountLines returns the number of lines Exhaust would walk in r,
// a last line without \n included, and rewinds r to its start so the
// identifiers can be read next. Lines of any length are counted.
func CountLines(r io.ReadSeeker) (int64, error) {
	var n int64
	src := bufio.NewReader(r)
	for {
		line, err := SafeReadLine(src)
		if err == io.EOF {
			if len(line) > 0 {
				n++
			}
			break
		}
		if err != nil {
			return n, fmt.Errorf("counting line %d: %w", n+1, err)
		}
		n++
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return n, fmt.Errorf("rewinding after %d lines: %w", n, err)
	}
	return n, nil
}
