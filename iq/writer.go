package iq

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/lvatt/flowgraph/signal"
)

// Writer encodes complex samples as cf32.
type Writer struct {
	w   *bufio.Writer
	buf [pairSize]byte
}

// NewWriter returns a buffered cf32 writer. Flush must be called after
// the last block.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes the block.
func (w *Writer) Write(samples signal.Complex) error {
	for _, s := range samples {
		binary.LittleEndian.PutUint32(w.buf[:4], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(w.buf[4:], math.Float32bits(imag(s)))
		if _, err := w.w.Write(w.buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
