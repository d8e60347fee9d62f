package dsp

// Decimator is a block based decimating FIR filter for complex samples
// with real taps. The delay line and the decimation phase persist across
// blocks and across tap changes, so splitting the input into blocks
// does not change the output.
type Decimator struct {
	taps       []float64
	decimation int
	// delay is a doubled circular buffer: each sample is stored at pos
	// and pos+size, so the newest size samples are contiguous. It never
	// shrinks, so shorter taps keep the samples longer taps need again.
	delay []complex64
	size  int
	pos   int
	skip  int
}

// NewDecimator returns a filter that emits every decimation-th output.
// The first input sample produces the first output.
func NewDecimator(taps []float64, decimation int) *Decimator {
	if decimation < 1 {
		decimation = 1
	}
	d := &Decimator{decimation: decimation}
	d.SetTaps(taps)
	return d
}

// Taps returns the taps in use. The slice must not be modified.
func (d *Decimator) Taps() []float64 {
	return d.taps
}

// SetTaps installs new taps. Input history is kept, so the filter output
// stays continuous. Samples older than any previous taps needed are zero.
func (d *Decimator) SetTaps(taps []float64) {
	d.taps = taps
	if len(taps) <= d.size {
		return
	}
	hist := d.history()
	d.size = len(taps)
	d.delay = make([]complex64, 2*d.size)
	d.pos = 0
	for _, x := range hist {
		d.push(x)
	}
}

// OutputLen returns the number of outputs n more inputs will produce.
func (d *Decimator) OutputLen(n int) int {
	if n <= 0 {
		return 0
	}
	// outputs are produced whenever skip wraps to zero
	first := (d.decimation - d.skip) % d.decimation
	if first >= n {
		return 0
	}
	return (n-first-1)/d.decimation + 1
}

// Process filters the input and appends the decimated output to out.
func (d *Decimator) Process(in []complex64, out []complex64) []complex64 {
	if len(d.taps) == 0 {
		return out
	}
	for _, x := range in {
		d.push(x)
		emit := d.skip == 0
		d.skip++
		if d.skip == d.decimation {
			d.skip = 0
		}
		if !emit {
			continue
		}
		// newest sample sits at pos+size-1 after push advanced pos
		var re, im float64
		newest := d.pos + d.size - 1
		for k, t := range d.taps {
			v := d.delay[newest-k]
			re += t * float64(real(v))
			im += t * float64(imag(v))
		}
		out = append(out, complex(float32(re), float32(im)))
	}
	return out
}

func (d *Decimator) push(x complex64) {
	if d.size == 0 {
		return
	}
	d.delay[d.pos] = x
	d.delay[d.pos+d.size] = x
	d.pos++
	if d.pos == d.size {
		d.pos = 0
	}
}

// history returns the delay line, oldest first.
func (d *Decimator) history() []complex64 {
	if d.size == 0 {
		return nil
	}
	h := make([]complex64, d.size)
	copy(h, d.delay[d.pos:d.pos+d.size])
	return h
}
