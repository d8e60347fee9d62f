package dsp_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvatt/flowgraph/dsp"
)

const epsilon = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestWindow(t *testing.T) {
	tests := []struct {
		window      dsp.Window
		attenuation float64
		ends        float64
	}{
		{window: dsp.WindowRectangular, attenuation: 21, ends: 1},
		{window: dsp.WindowHamming, attenuation: 53, ends: 0.08},
		{window: dsp.WindowHann, attenuation: 44, ends: 0},
		{window: dsp.WindowBlackman, attenuation: 74, ends: 0},
	}
	for _, test := range tests {
		t.Run(test.window.String(), func(t *testing.T) {
			assert.Equal(t, test.attenuation, test.window.Attenuation(6.76))
			c := test.window.Coefficients(9, 6.76)
			require.Len(t, c, 9)
			assert.InDelta(t, test.ends, c[0], epsilon)
			assert.InDelta(t, test.ends, c[8], epsilon)
			assert.InDelta(t, 1, c[4], epsilon)
			for i := 0; i < 4; i++ {
				assert.InDelta(t, c[i], c[8-i], epsilon)
			}
		})
	}

	k := dsp.WindowKaiser.Coefficients(9, 6.76)
	assert.InDelta(t, 1, k[4], epsilon)
	assert.Less(t, k[0], 0.01)
	assert.InDelta(t, 6.76/0.1102+8.7, dsp.WindowKaiser.Attenuation(6.76), epsilon)
	assert.Equal(t, []float64{1}, dsp.WindowBlackman.Coefficients(1, 0))
	assert.Nil(t, dsp.WindowBlackman.Coefficients(0, 0))
}

func channelSpec(sampleRate float64) dsp.LowPassSpec {
	return dsp.LowPassSpec{
		Gain:            1,
		SampleRate:      sampleRate,
		Cutoff:          200000,
		TransitionWidth: 1000000,
		Window:          dsp.WindowBlackman,
		Beta:            6.76,
	}
}

func TestLowPass(t *testing.T) {
	tests := []struct {
		sampleRate float64
		numTaps    int
	}{
		{sampleRate: 2000000, numTaps: 7},
		{sampleRate: 2400000, numTaps: 9},
		{sampleRate: 10000000, numTaps: 33},
		{sampleRate: 800000, numTaps: 3},
	}
	for _, test := range tests {
		spec := channelSpec(test.sampleRate)
		taps, err := dsp.LowPass(spec)
		require.NoError(t, err)
		require.Len(t, taps, test.numTaps)
		assert.Equal(t, test.numTaps, spec.NumTaps())

		var sum float64
		for i, tap := range taps {
			sum += tap
			assert.InDelta(t, tap, taps[len(taps)-1-i], epsilon, "taps must be symmetric")
		}
		assert.InDelta(t, 1, sum, epsilon, "dc gain")
	}
}

func TestLowPassDeterministic(t *testing.T) {
	a, err := dsp.LowPass(channelSpec(2000000))
	require.NoError(t, err)
	b, err := dsp.LowPass(channelSpec(2000000))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLowPassInvalid(t *testing.T) {
	tests := []struct {
		description string
		spec        dsp.LowPassSpec
	}{
		{description: "zero rate", spec: channelSpec(0)},
		{description: "cutoff above nyquist", spec: channelSpec(400000)},
		{description: "no transition", spec: dsp.LowPassSpec{Gain: 1, SampleRate: 2e6, Cutoff: 2e5}},
		{description: "too many taps", spec: channelSpec(1.92e18)},
		{description: "too narrow transition", spec: dsp.LowPassSpec{Gain: 1, SampleRate: 2e6, Cutoff: 2e5, TransitionWidth: 1, Window: dsp.WindowBlackman}},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := dsp.LowPass(test.spec)
			assert.ErrorIs(t, err, dsp.ErrInvalidFilter)
		})
	}
}

func tone(n int, freq, sampleRate float64) []complex64 {
	x := make([]complex64, n)
	for i := range x {
		x[i] = complex64(cmplx.Exp(complex(0, 2*math.Pi*freq*float64(i)/sampleRate)))
	}
	return x
}

func TestDecimatorBlocks(t *testing.T) {
	taps, err := dsp.LowPass(channelSpec(2000000))
	require.NoError(t, err)
	in := tone(1001, 50000, 2000000)

	whole := dsp.NewDecimator(taps, 4).Process(in, nil)
	assert.Len(t, whole, 251)

	d := dsp.NewDecimator(taps, 4)
	var chunked []complex64
	for _, size := range []int{3, 7, 1, 250, 740} {
		expected := d.OutputLen(size)
		before := len(chunked)
		chunked = d.Process(in[:size], chunked)
		assert.Equal(t, expected, len(chunked)-before)
		in = in[size:]
	}
	require.Len(t, chunked, len(whole))
	for i := range whole {
		assert.InDelta(t, real(whole[i]), real(chunked[i]), epsilon)
		assert.InDelta(t, imag(whole[i]), imag(chunked[i]), epsilon)
	}
}

func TestDecimatorPassband(t *testing.T) {
	taps, err := dsp.LowPass(channelSpec(2000000))
	require.NoError(t, err)
	out := dsp.NewDecimator(taps, 4).Process(tone(4000, 0, 2000000), nil)
	// dc passes with unity gain once the delay line is full
	for _, v := range out[2:] {
		assert.InDelta(t, 1, real(v), 1e-5)
		assert.InDelta(t, 0, imag(v), 1e-5)
	}
}

func TestDecimatorSetTapsKeepsHistory(t *testing.T) {
	short := []float64{0.5, 0.5}
	long := []float64{0.25, 0.25, 0.25, 0.25}
	d := dsp.NewDecimator(short, 1)
	d.Process([]complex64{1, 2, 3}, nil)
	d.SetTaps(long)
	assert.Equal(t, long, d.Taps())
	// history holds only the last two samples from the short filter
	out := d.Process([]complex64{4}, nil)
	require.Len(t, out, 1)
	assert.InDelta(t, (0+2+3+4)/4.0, real(out[0]), epsilon)

	d.SetTaps(short)
	out = d.Process([]complex64{5}, nil)
	assert.InDelta(t, (4+5)/2.0, real(out[0]), epsilon)

	// samples seen by the short filter are still there for the long one
	d.SetTaps(long)
	out = d.Process([]complex64{6}, nil)
	assert.InDelta(t, (3+4+5+6)/4.0, real(out[0]), epsilon)
}

func TestDiscriminator(t *testing.T) {
	const (
		sampleRate = 500000.0
		deviation  = 5000.0
	)
	gain := dsp.DiscriminatorGain(sampleRate, deviation)
	in := tone(100, deviation, sampleRate)

	whole := dsp.NewDiscriminator(gain).Process(in, nil)
	for _, v := range whole[1:] {
		assert.InDelta(t, 1, v, 1e-4)
	}

	d := dsp.NewDiscriminator(gain)
	chunked := d.Process(in[:33], nil)
	chunked = d.Process(in[33:], chunked)
	assert.InDeltaSlice(t, whole, chunked, epsilon)

	neg := dsp.NewDiscriminator(gain).Process(tone(10, -2*deviation, sampleRate), nil)
	assert.InDelta(t, -2, neg[5], 1e-4)
}

func TestClip(t *testing.T) {
	x := []float64{-3, -1, 0, 0.5, 1, 10}
	dsp.Clip(x, 1)
	assert.Equal(t, []float64{-1, -1, 0, 0.5, 1, 1}, x)
}

func TestDeemphasis(t *testing.T) {
	d := dsp.NewDeemphasis(500000, 75e-6)
	dt := 1 / 500000.0
	assert.True(t, almostEqual(dt/(75e-6+dt), d.Alpha()))

	x := make([]float64, 5000)
	for i := range x {
		x[i] = 1
	}
	d.Process(x)
	assert.Greater(t, x[1], x[0])
	assert.InDelta(t, 1, x[len(x)-1], 1e-6)

	// state survives a rate change
	d.SetSampleRate(250000, 75e-6)
	y := []float64{1}
	d.Process(y)
	assert.InDelta(t, 1, y[0], 1e-6)
}

func TestResamplerRatio(t *testing.T) {
	tests := []struct {
		in, out  int
		up, down int
	}{
		{in: 500000, out: 48000, up: 12, down: 125},
		{in: 480000, out: 48000, up: 1, down: 10},
		{in: 600000, out: 48000, up: 2, down: 25},
		{in: 48000, out: 48000, up: 1, down: 1},
	}
	for _, test := range tests {
		up, down := dsp.Ratio(test.in, test.out)
		assert.Equal(t, test.up, up)
		assert.Equal(t, test.down, down)
	}
}

func TestResamplerLength(t *testing.T) {
	r, err := dsp.NewResampler(12, 125)
	require.NoError(t, err)
	assert.Equal(t, 12, r.Up())
	assert.Equal(t, 125, r.Down())

	var out []float64
	total := 0
	for _, size := range []int{11, 1000, 1, 123988} {
		out = r.Process(make([]float64, size), out)
		total += size
		assert.Equal(t, int(math.Ceil(float64(total)*12/125)), len(out))
	}
	assert.Len(t, out, 12000)

	_, err = dsp.NewResampler(0, 1)
	assert.ErrorIs(t, err, dsp.ErrInvalidRatio)
}

func TestResamplerBlocks(t *testing.T) {
	in := make([]float64, 5000)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / 500000)
	}
	r1, err := dsp.NewResampler(12, 125)
	require.NoError(t, err)
	whole := r1.Process(in, nil)

	r2, err := dsp.NewResampler(12, 125)
	require.NoError(t, err)
	var chunked []float64
	for i := 0; i < len(in); i += 777 {
		end := i + 777
		if end > len(in) {
			end = len(in)
		}
		chunked = r2.Process(in[i:end], chunked)
	}
	assert.InDeltaSlice(t, whole, chunked, 1e-9)
}

func TestResamplerDCGain(t *testing.T) {
	r, err := dsp.NewResampler(12, 125)
	require.NoError(t, err)
	in := make([]float64, 20000)
	for i := range in {
		in[i] = 1
	}
	out := r.Process(in, nil)
	for _, v := range out[100:] {
		assert.InDelta(t, 1, v, 1e-3)
	}
}
