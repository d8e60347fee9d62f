// Package iq reads and writes complex baseband sample files.
//
// Two containers are supported: raw interleaved little-endian float32
// I/Q pairs (cf32) and stereo PCM WAV files with I on the first channel
// and Q on the second.
package iq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

const (
	// FormatCF32 is raw interleaved little-endian float32 pairs.
	FormatCF32 Format = iota
	// FormatWAV is a stereo PCM WAV container.
	FormatWAV
	// FormatAuto detects WAV by its RIFF header and falls back to cf32.
	FormatAuto
)

// pairSize is the size of a single cf32 sample.
const pairSize = 8

var (
	// ErrTruncated is returned when the file ends in the middle of a
	// sample.
	ErrTruncated = errors.New("truncated iq sample")
	// ErrFormat is returned when a WAV file can't hold IQ samples.
	ErrFormat = errors.New("unsupported iq format")
)

type (
	// Format of IQ file.
	Format int

	// Source reads IQ samples from a file. Each allocation reads the file
	// from the beginning, single pass.
	Source struct {
		path       string
		sampleRate int
		format     Format
		log        log.Logger
	}

	// Option configures the source.
	Option func(*Source)

	// reader decodes the next block of samples.
	reader interface {
		read(n int) (signal.Complex, error)
	}

	cf32Reader struct {
		r   *bufio.Reader
		buf []byte
		// truncated is reported after the last complete block.
		truncated bool
	}

	wavReader struct {
		d        *wav.Decoder
		ib       *audio.IntBuffer
		bitDepth signal.BitDepth
	}
)

func (f Format) String() string {
	switch f {
	case FormatCF32:
		return "cf32"
	case FormatWAV:
		return "wav"
	case FormatAuto:
		return "auto"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat returns the format for its name.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{FormatCF32, FormatWAV, FormatAuto} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrFormat, s)
}

// WithFormat sets the file format. Default is cf32.
func WithFormat(f Format) Option {
	return func(s *Source) {
		s.format = f
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// NewSource returns a source of the file. IQ files don't carry a rate, so
// the rate the samples were captured with must be provided.
func NewSource(path string, sampleRate int, opts ...Option) *Source {
	s := &Source{
		path:       path,
		sampleRate: sampleRate,
		log:        log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source returns new source allocator. The file is opened by the start
// hook and closed by the flush hook.
func (s *Source) Source() flowgraph.SourceAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int) (flowgraph.Source, error) {
		var (
			file *os.File
			r    reader
		)
		return flowgraph.Source{
			Name: "iq",
			SourceFunc: func() (signal.Buffer, error) {
				out, err := r.read(bufferSize)
				if err != nil {
					return nil, err
				}
				return out, nil
			},
			StartFunc: func(ctx context.Context) error {
				var err error
				if file, err = os.Open(s.path); err != nil {
					return err
				}
				if r, err = s.reader(file); err != nil {
					file.Close()
					file = nil
					return fmt.Errorf("%s: %w", s.path, err)
				}
				return nil
			},
			FlushFunc: func(ctx context.Context) error {
				if file == nil {
					return nil
				}
				err := file.Close()
				file = nil
				return err
			},
			Output: flowgraph.SignalProperties{
				Kind:       signal.KindComplex,
				SampleRate: s.sampleRate,
			},
		}, nil
	}
}

func (s *Source) reader(file *os.File) (reader, error) {
	format := s.format
	if format == FormatAuto {
		var err error
		if format, err = sniff(file); err != nil {
			return nil, err
		}
	}
	s.log.Debug(fmt.Sprintf("iq: reading %s as %v", s.path, format))
	switch format {
	case FormatWAV:
		return s.newWavReader(file)
	default:
		return &cf32Reader{r: bufio.NewReader(file)}, nil
	}
}

// sniff peeks at the header and rewinds the file.
func sniff(file *os.File) (Format, error) {
	header := make([]byte, 4)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if n == 4 && bytes.Equal(header, []byte("RIFF")) {
		return FormatWAV, nil
	}
	return FormatCF32, nil
}

func (s *Source) newWavReader(file *os.File) (*wavReader, error) {
	d := wav.NewDecoder(file)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav", ErrFormat)
	}
	if d.NumChans != 2 {
		return nil, fmt.Errorf("%w: %d channels, need 2", ErrFormat, d.NumChans)
	}
	bitDepth := signal.BitDepth(d.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, fmt.Errorf("%w: %d bit depth", ErrFormat, d.BitDepth)
	}
	if int(d.SampleRate) != s.sampleRate {
		s.log.Warn(fmt.Sprintf("iq: %s declares %d Hz, using %d Hz", s.path, d.SampleRate, s.sampleRate))
	}
	return &wavReader{
		d: d,
		ib: &audio.IntBuffer{
			Format:         d.Format(),
			SourceBitDepth: int(d.BitDepth),
		},
		bitDepth: bitDepth,
	}, nil
}

func (r *cf32Reader) read(n int) (signal.Complex, error) {
	if r.truncated {
		return nil, ErrTruncated
	}
	if cap(r.buf) < n*pairSize {
		r.buf = make([]byte, n*pairSize)
	}
	buf := r.buf[:n*pairSize]
	read, err := io.ReadFull(r.r, buf)
	switch err {
	case nil:
	case io.ErrUnexpectedEOF:
		if read%pairSize != 0 {
			r.truncated = true
		}
		if read < pairSize {
			return nil, ErrTruncated
		}
	default:
		return nil, err
	}
	return decodeCF32(buf[:read-read%pairSize]), nil
}

func (r *wavReader) read(n int) (signal.Complex, error) {
	if cap(r.ib.Data) < 2*n {
		r.ib.Data = make([]int, 2*n)
	}
	r.ib.Data = r.ib.Data[:2*n]
	read, err := r.d.PCMBuffer(r.ib)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if read == 0 {
		return nil, io.EOF
	}
	if read%2 != 0 {
		return nil, ErrTruncated
	}
	return signal.ComplexFromInts(r.ib.Data[:read], r.bitDepth), nil
}

func decodeCF32(b []byte) signal.Complex {
	out := make(signal.Complex, len(b)/pairSize)
	for i := range out {
		re := math.Float32frombits(binary.LittleEndian.Uint32(b[i*pairSize:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[i*pairSize+4:]))
		out[i] = complex(re, im)
	}
	return out
}
