package iq_test

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/iq"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

const sampleRate = 2000000

func writeCF32(t *testing.T, samples signal.Complex, extra ...byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.cf32")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := iq.NewWriter(f)
	require.NoError(t, w.Write(samples))
	require.NoError(t, w.Flush())
	_, err = f.Write(extra)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func ramp(n int) signal.Complex {
	c := make(signal.Complex, n)
	for i := range c {
		c[i] = complex(float32(i), -float32(i))
	}
	return c
}

// readAll runs the source the way the runtime does.
func readAll(t *testing.T, s flowgraph.Source) ([]signal.Complex, error) {
	t.Helper()
	ctx := context.Background()
	if err := s.StartFunc(ctx); err != nil {
		return nil, err
	}
	defer func() {
		assert.NoError(t, s.FlushFunc(ctx))
	}()
	var blocks []signal.Complex
	for {
		b, err := s.SourceFunc()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b.(signal.Complex))
	}
}

func TestSourceCF32(t *testing.T) {
	tests := []struct {
		description string
		samples     int
		bufferSize  int
		blocks      []int
	}{
		{description: "exact blocks", samples: 12, bufferSize: 4, blocks: []int{4, 4, 4}},
		{description: "short last block", samples: 10, bufferSize: 4, blocks: []int{4, 4, 2}},
		{description: "empty file", samples: 0, bufferSize: 4, blocks: nil},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			in := ramp(test.samples)
			path := writeCF32(t, in)
			s, err := iq.NewSource(path, sampleRate).Source()(mutable.Mutable(), test.bufferSize)
			require.NoError(t, err)
			assert.Equal(t, flowgraph.SignalProperties{Kind: signal.KindComplex, SampleRate: sampleRate}, s.Output)

			blocks, err := readAll(t, s)
			require.NoError(t, err)
			var sizes []int
			var out signal.Complex
			for _, b := range blocks {
				sizes = append(sizes, len(b))
				out = append(out, b...)
			}
			assert.Equal(t, test.blocks, sizes)
			if test.samples > 0 {
				assert.Equal(t, in, out)
			}
		})
	}
}

func TestSourceTruncated(t *testing.T) {
	path := writeCF32(t, ramp(5), 1, 2, 3)
	s, err := iq.NewSource(path, sampleRate).Source()(mutable.Mutable(), 4)
	require.NoError(t, err)
	blocks, err := readAll(t, s)
	assert.ErrorIs(t, err, iq.ErrTruncated)
	// complete samples are still delivered
	require.Len(t, blocks, 2)
	assert.Len(t, blocks[1], 1)
}

func TestSourceMissingFile(t *testing.T) {
	s, err := iq.NewSource(filepath.Join(t.TempDir(), "missing.cf32"), sampleRate).Source()(mutable.Mutable(), 4)
	require.NoError(t, err)
	err = s.StartFunc(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, s.FlushFunc(context.Background()))
}

func writeWAV(t *testing.T, samples signal.Complex, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	e := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, 0, 2*len(samples))
	for _, s := range samples {
		data = append(data, int(real(s)*math.MaxInt16), int(imag(s)*math.MaxInt16))
	}
	require.NoError(t, e.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, e.Close())
	require.NoError(t, f.Close())
	return path
}

func TestSourceWAV(t *testing.T) {
	in := signal.Complex{complex(1, 0), complex(0, -1), complex(0.5, 0.5)}
	path := writeWAV(t, in, 2)

	for _, format := range []iq.Format{iq.FormatWAV, iq.FormatAuto} {
		t.Run(format.String(), func(t *testing.T) {
			s, err := iq.NewSource(path, sampleRate, iq.WithFormat(format)).Source()(mutable.Mutable(), 2)
			require.NoError(t, err)
			blocks, err := readAll(t, s)
			require.NoError(t, err)
			require.Len(t, blocks, 2)
			out := append(blocks[0], blocks[1]...)
			require.Len(t, out, len(in))
			for i := range in {
				assert.InDelta(t, real(in[i]), real(out[i]), 1e-4)
				assert.InDelta(t, imag(in[i]), imag(out[i]), 1e-4)
			}
		})
	}
}

func TestSourceWAVMono(t *testing.T) {
	path := writeWAV(t, signal.Complex{1, 1}, 1)
	s, err := iq.NewSource(path, sampleRate, iq.WithFormat(iq.FormatWAV)).Source()(mutable.Mutable(), 2)
	require.NoError(t, err)
	err = s.StartFunc(context.Background())
	assert.ErrorIs(t, err, iq.ErrFormat)
}

func TestAutoDetectsCF32(t *testing.T) {
	in := ramp(3)
	path := writeCF32(t, in)
	s, err := iq.NewSource(path, sampleRate, iq.WithFormat(iq.FormatAuto)).Source()(mutable.Mutable(), 8)
	require.NoError(t, err)
	blocks, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, in, blocks[0])
}

func TestParseFormat(t *testing.T) {
	for _, f := range []iq.Format{iq.FormatCF32, iq.FormatWAV, iq.FormatAuto} {
		parsed, err := iq.ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}
	_, err := iq.ParseFormat("mp3")
	assert.ErrorIs(t, err, iq.ErrFormat)
}
