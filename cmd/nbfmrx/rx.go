package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/config"
	"github.com/lvatt/flowgraph/filter"
	"github.com/lvatt/flowgraph/iq"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/nbfm"
	"github.com/lvatt/flowgraph/params"
	"github.com/lvatt/flowgraph/run"
	sig "github.com/lvatt/flowgraph/signal"
	"github.com/lvatt/flowgraph/wav"
)

type rxCommand struct {
	configPath string
	c          config.Config
	flags      *pflag.FlagSet
}

func (cmd *rxCommand) Name() string {
	return "rx"
}

func (cmd *rxCommand) Help() string {
	return "Demodulate an IQ file into a WAV file"
}

func (cmd *rxCommand) Register(fs *pflag.FlagSet) {
	cmd.c = config.New()
	cmd.flags = fs
	fs.StringVarP(&cmd.configPath, "config", "c", "", "YAML config file, flags override its values")
	fs.StringVarP(&cmd.c.Input, "in", "i", cmd.c.Input, "input IQ file or http(s) URL")
	fs.StringVarP(&cmd.c.Output, "out", "o", cmd.c.Output, "output WAV file")
	fs.StringVar(&cmd.c.Format, "format", cmd.c.Format, "input format: cf32, wav or auto")
	fs.IntVarP(&cmd.c.SampleRate, "sample-rate", "s", cmd.c.SampleRate, "input sample rate in Hz")
	fs.Float64VarP(&cmd.c.Freq, "freq", "f", cmd.c.Freq, "center frequency in Hz")
	fs.IntVar(&cmd.c.BufferSize, "buffer-size", cmd.c.BufferSize, "samples per block")
	fs.IntVar(&cmd.c.BitDepth, "bit-depth", cmd.c.BitDepth, "output bit depth: 16 or 32")
	fs.StringVar(&cmd.c.Metrics, "metrics", cmd.c.Metrics, "serve run counters on this address at /debug/vars")
}

// resolve merges the config file with flags that were set explicitly.
func (cmd *rxCommand) resolve() (config.Config, error) {
	if cmd.configPath == "" {
		return cmd.c, cmd.c.Validate()
	}
	c, err := config.Load(cmd.configPath)
	if err != nil {
		return config.Config{}, err
	}
	cmd.flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "in":
			c.Input = cmd.c.Input
		case "out":
			c.Output = cmd.c.Output
		case "format":
			c.Format = cmd.c.Format
		case "sample-rate":
			c.SampleRate = cmd.c.SampleRate
		case "freq":
			c.Freq = cmd.c.Freq
		case "buffer-size":
			c.BufferSize = cmd.c.BufferSize
		case "bit-depth":
			c.BitDepth = cmd.c.BitDepth
		case "metrics":
			c.Metrics = cmd.c.Metrics
		}
	})
	return c, c.Validate()
}

func (cmd *rxCommand) Run(out io.Writer) error {
	c, err := cmd.resolve()
	if err != nil {
		return err
	}
	format, err := c.IQFormat()
	if err != nil {
		return err
	}
	logger := log.GetLogger()

	input := c.Input
	if isURL(input) {
		dir, err := os.MkdirTemp("", "nbfmrx")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		input = filepath.Join(dir, "input")
		if _, err := download(context.Background(), c.Input, input, logger); err != nil {
			return err
		}
	}

	rt, err := params.New(c.SampleRate, c.Freq)
	if err != nil {
		return err
	}
	g, err := flowgraph.New(c.BufferSize, flowgraph.Routing{
		Source: iq.NewSource(input, c.SampleRate, iq.WithFormat(format), iq.WithLogger(logger)).Source(),
		Processors: flowgraph.Processors(
			filter.Channel(rt, filter.WithLogger(logger)),
			nbfm.Demod(rt, nbfm.WithLogger(logger)),
		),
		Sink: wav.NewSink(c.Output, wav.WithBitDepth(sig.BitDepth(c.BitDepth)), wav.WithLogger(logger)).Sink(),
	})
	if err != nil {
		return err
	}

	opts := []run.Option{run.WithLogger(logger)}
	if c.Metrics != "" {
		opts = append(opts, run.WithPublish())
	}
	r, err := run.New(g, rt, opts...)
	if err != nil {
		return err
	}
	if c.Metrics != "" {
		srv, err := serveMetrics(c.Metrics, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Fprintf(out, "metrics: %s\n", srv.URL())
	}
	logger.WithFields(logrus.Fields{
		"run":   r.ID(),
		"graph": g.String(),
		"freq":  r.Freq(),
	}).Info("receiving")

	start := time.Now()
	if err := r.Start(context.Background()); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case s := <-signals:
			logger.WithField("signal", s).Info("stopping")
			r.Stop()
		case <-done:
		}
	}()

	if err := r.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	measure := r.Measure()
	counters := measure["wav"]
	fmt.Fprintf(out, "%s: %d samples, %v\n", c.Output, counters.Samples, counters.Duration)
	for _, name := range r.Stages() {
		sc := measure[name]
		fmt.Fprintf(out, "  %-8s %6d blocks %10d samples %v\n", name, sc.Messages, sc.Samples, sc.Duration)
	}
	fmt.Fprintf(out, "processing took %v\n", elapsed.Round(time.Millisecond))
	return nil
}
