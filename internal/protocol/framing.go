package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLineBytes bounds a single framed message.
const MaxLineBytes = 4 << 20

// WriteLine encodes v as one JSON object terminated by '\n'. json.Marshal
// escapes newlines inside strings, so the frame never splits.
func WriteLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadLine reads one '\n'-terminated frame. A final frame without a trailing
// newline is returned as-is; io.EOF is returned only when nothing was read.
// A frame longer than MaxLineBytes (newline included) is consumed through
// its newline and reported as ErrMalformed, so the next call starts on the
// following frame.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	oversize := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversize {
			line = append(line, chunk...)
			if len(line) > MaxLineBytes {
				oversize = true
				line = nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		ended := err == nil || (errors.Is(err, io.EOF) && (oversize || len(line) > 0))
		switch {
		case ended && oversize:
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformed, MaxLineBytes)
		case ended:
			return line, nil
		default:
			return nil, err
		}
	}
}
