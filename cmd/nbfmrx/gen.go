package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/pflag"

	"github.com/lvatt/flowgraph/config"
	"github.com/lvatt/flowgraph/iq"
	"github.com/lvatt/flowgraph/signal"
)

const genBlockSize = 4096

// genCommand writes a test recording: a carrier at an offset from the
// center, frequency modulated by a tone.
type genCommand struct {
	out        string
	sampleRate int
	duration   float64
	offset     float64
	tone       float64
	deviation  float64
}

func (cmd *genCommand) Name() string {
	return "gen"
}

func (cmd *genCommand) Help() string {
	return "Generate an FM modulated cf32 IQ file"
}

func (cmd *genCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.out, "out", "o", config.DefaultInput, "output cf32 file")
	fs.IntVarP(&cmd.sampleRate, "sample-rate", "s", config.DefaultSampleRate, "sample rate in Hz")
	fs.Float64VarP(&cmd.duration, "duration", "d", 10, "duration in seconds")
	fs.Float64Var(&cmd.offset, "offset", 50000, "carrier offset from the center in Hz")
	fs.Float64Var(&cmd.tone, "tone", 1000, "modulating tone in Hz, 0 for a bare carrier")
	fs.Float64Var(&cmd.deviation, "deviation", 2500, "frequency deviation in Hz")
}

func (cmd *genCommand) Run(out io.Writer) error {
	if cmd.sampleRate <= 0 || cmd.duration <= 0 {
		return errors.New("sample rate and duration must be positive")
	}
	f, err := os.Create(cmd.out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := iq.NewWriter(f)
	total := int(cmd.duration * float64(cmd.sampleRate))
	block := make(signal.Complex, 0, genBlockSize)
	fs := float64(cmd.sampleRate)
	var phase float64
	for i := 0; i < total; i++ {
		inst := cmd.offset + cmd.deviation*math.Sin(2*math.Pi*cmd.tone*float64(i)/fs)
		phase = math.Mod(phase+2*math.Pi*inst/fs, 2*math.Pi)
		block = append(block, complex64(complex(math.Cos(phase), math.Sin(phase))))
		if len(block) == genBlockSize {
			if err := w.Write(block); err != nil {
				return err
			}
			block = block[:0]
		}
	}
	if err := w.Write(block); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d samples at %d Hz\n", cmd.out, total, cmd.sampleRate)
	return nil
}
