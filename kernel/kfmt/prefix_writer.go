package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that starts every line written to Sink with
// Prefix. The prefix is emitted lazily, when the first byte of a line
// arrives, and is not included in the byte counts returned by Write.
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	midLine bool
}

// Write implements io.Writer.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if eol := bytes.IndexByte(p, '\n'); eol != -1 {
			line = p[:eol+1]
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		w.midLine = line[len(line)-1] != '\n'
		p = p[len(line):]
	}

	return written, nil
}
