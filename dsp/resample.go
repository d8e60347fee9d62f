package dsp

import (
	"errors"
	"fmt"
	"math"
)

const (
	// tapsPerPhase is the length of each polyphase branch.
	tapsPerPhase = 32
	cutoffScale  = 0.92
	kaiserBeta   = 7.5
)

// ErrInvalidRatio is returned when a resampling ratio can't be used.
var ErrInvalidRatio = errors.New("invalid resampling ratio")

// Resampler is a rational polyphase resampler changing the rate by
// up/down. State persists across blocks: after n inputs in total it has
// produced ceil(n*up/down) outputs.
type Resampler struct {
	up, down int
	phases   [][]float64

	phase   int
	index   int // next input index to interpolate at
	total   int // inputs consumed so far
	history []float64
}

// Ratio reduces the rate conversion inRate to outRate to lowest terms.
func Ratio(inRate, outRate int) (up, down int) {
	g := gcd(inRate, outRate)
	return outRate / g, inRate / g
}

// NewResampler returns a resampler for the reduced up/down ratio.
func NewResampler(up, down int) (*Resampler, error) {
	if up <= 0 || down <= 0 {
		return nil, fmt.Errorf("%w: %d/%d", ErrInvalidRatio, up, down)
	}
	g := gcd(up, down)
	up, down = up/g, down/g

	n := tapsPerPhase * up
	fc := 0.5 / float64(max(up, down)) * cutoffScale
	w := WindowKaiser.Coefficients(n, kaiserBeta)
	taps := make([]float64, n)
	center := 0.5 * float64(n-1)
	var sum float64
	for i := range taps {
		t := float64(i) - center
		taps[i] = 2 * fc * sinc(2*fc*t) * w[i]
		sum += taps[i]
	}
	// unity DC gain per output phase
	scale := float64(up) / sum
	phases := make([][]float64, up)
	for p := range phases {
		for i := p; i < n; i += up {
			phases[p] = append(phases[p], taps[i]*scale)
		}
	}
	return &Resampler{
		up:      up,
		down:    down,
		phases:  phases,
		history: make([]float64, 0, tapsPerPhase),
	}, nil
}

// Up returns the interpolation factor.
func (r *Resampler) Up() int { return r.up }

// Down returns the decimation factor.
func (r *Resampler) Down() int { return r.down }

// Process resamples the input and appends the result to out.
func (r *Resampler) Process(in []float64, out []float64) []float64 {
	if len(in) == 0 {
		return out
	}
	work := make([]float64, len(r.history)+len(in))
	copy(work, r.history)
	copy(work[len(r.history):], in)

	base := r.total - len(r.history)
	last := r.total + len(in) - 1
	for r.index <= last {
		var y float64
		for k, c := range r.phases[r.phase] {
			i := r.index - k
			if i < base {
				break
			}
			y += c * work[i-base]
		}
		out = append(out, y)

		r.phase += r.down
		r.index += r.phase / r.up
		r.phase %= r.up
	}
	r.total += len(in)

	keep := tapsPerPhase - 1
	if keep > len(work) {
		keep = len(work)
	}
	r.history = append(r.history[:0], work[len(work)-keep:]...)
	return out
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
