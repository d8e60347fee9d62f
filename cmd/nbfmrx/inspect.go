package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/spf13/pflag"

	"github.com/lvatt/flowgraph/config"
	"github.com/lvatt/flowgraph/signal"
	"github.com/lvatt/flowgraph/wav"
)

type inspectCommand struct {
	in string
}

func (cmd *inspectCommand) Name() string {
	return "inspect"
}

func (cmd *inspectCommand) Help() string {
	return "Print a summary of a WAV file"
}

func (cmd *inspectCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.in, "in", "i", config.DefaultOutput, "WAV file")
}

func (cmd *inspectCommand) Run(out io.Writer) error {
	if cmd.in == "" {
		return errors.New("missing --in flag")
	}
	samples, format, err := wav.ReadFile(cmd.in)
	if err != nil {
		return err
	}
	var peak, sum float64
	for _, v := range samples {
		peak = math.Max(peak, math.Abs(v))
		sum += v * v
	}
	var rms float64
	if len(samples) > 0 {
		rms = math.Sqrt(sum / float64(len(samples)))
	}
	fmt.Fprintf(out, "file:        %s\n", cmd.in)
	fmt.Fprintf(out, "sample rate: %d Hz\n", format.SampleRate)
	fmt.Fprintf(out, "channels:    %d\n", format.NumChannels)
	fmt.Fprintf(out, "bit depth:   %d\n", format.BitDepth)
	fmt.Fprintf(out, "frames:      %d\n", format.Frames)
	fmt.Fprintf(out, "duration:    %v\n", signal.DurationOf(format.SampleRate, int64(format.Frames)))
	fmt.Fprintf(out, "peak:        %.4f\n", peak)
	fmt.Fprintf(out, "rms:         %.4f\n", rms)
	return nil
}
