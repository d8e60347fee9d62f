// Package wav writes the demodulated audio into a PCM WAV file.
package wav

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

const (
	// pcmFormat is the WAVE_FORMAT_PCM tag.
	pcmFormat   = 1
	numChannels = 1
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")
	// ErrInvalidFile is returned when a file is not a valid WAV.
	ErrInvalidFile = errors.New("invalid wav file")
)

type (
	// Sink saves mono audio to a wav file. The file is overwritten on
	// start. The header is finalized once, by the flush hook.
	Sink struct {
		path     string
		bitDepth signal.BitDepth
		log      log.Logger
	}

	// Option configures the sink.
	Option func(*Sink)

	// Format describes a wav file.
	Format struct {
		SampleRate  int
		NumChannels int
		BitDepth    signal.BitDepth
		// Frames is the number of samples per channel.
		Frames int
	}
)

// WithBitDepth sets the sample encoding. Default is 16 bit.
func WithBitDepth(bd signal.BitDepth) Option {
	return func(s *Sink) {
		s.bitDepth = bd
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// NewSink returns a wav sink for the path.
func NewSink(path string, opts ...Option) *Sink {
	s := &Sink{
		path:     path,
		bitDepth: signal.BitDepth16,
		log:      log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sink returns new sink allocator. The input must be real samples.
func (s *Sink) Sink() flowgraph.SinkAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int, input flowgraph.SignalProperties) (flowgraph.Sink, error) {
		if s.bitDepth != signal.BitDepth16 && s.bitDepth != signal.BitDepth32 {
			return flowgraph.Sink{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, s.bitDepth)
		}
		if err := input.CheckKind(signal.KindReal); err != nil {
			return flowgraph.Sink{}, err
		}
		var (
			file    *os.File
			encoder *wav.Encoder
			once    *sync.Once
			ib      = &audio.IntBuffer{
				Format: &audio.Format{
					NumChannels: numChannels,
					SampleRate:  input.SampleRate,
				},
				Data:           make([]int, 0, bufferSize),
				SourceBitDepth: int(s.bitDepth),
			}
		)
		return flowgraph.Sink{
			Name:  "wav",
			Input: signal.KindReal,
			SinkFunc: func(in signal.Buffer) error {
				ib.Data = in.(signal.Real).AppendInts(ib.Data[:0], s.bitDepth)
				return encoder.Write(ib)
			},
			StartFunc: func(ctx context.Context) error {
				var err error
				if file, err = os.Create(s.path); err != nil {
					return err
				}
				encoder = wav.NewEncoder(file, input.SampleRate, int(s.bitDepth), numChannels, pcmFormat)
				// headers and an empty data chunk, so a run without
				// blocks still produces a valid file
				ib.Data = ib.Data[:0]
				if err = encoder.Write(ib); err != nil {
					file.Close()
					return err
				}
				once = &sync.Once{}
				s.log.Debug(fmt.Sprintf("wav: writing %s at %d Hz", s.path, input.SampleRate))
				return nil
			},
			FlushFunc: func(ctx context.Context) error {
				if once == nil {
					return nil
				}
				var err error
				once.Do(func() {
					if err = encoder.Close(); err != nil {
						file.Close()
						return
					}
					err = file.Close()
				})
				return err
			},
		}, nil
	}
}

// ReadFile reads all samples of a wav file. Samples of multiple channels
// are interleaved.
func ReadFile(path string) (signal.Real, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	bitDepth := signal.BitDepth(d.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, Format{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, err
	}
	format := Format{
		SampleRate:  int(d.SampleRate),
		NumChannels: int(d.NumChans),
		BitDepth:    bitDepth,
	}
	if format.NumChannels > 0 {
		format.Frames = len(buf.Data) / format.NumChannels
	}
	return signal.RealFromInts(buf.Data, bitDepth), format, nil
}
