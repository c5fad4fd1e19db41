package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"sync"
)

const (
	// FrequencyBins is the size of the analysis window handed to the level meter.
	FrequencyBins = 256
	fftSize       = FrequencyBins * 2

	minDecibels     = -100.0
	maxDecibels     = -30.0
	smoothingFactor = 0.8
)

// Analyser is a frequency analysis node fed with PCM16LE samples.
// It keeps the latest fftSize samples and produces byte-scaled magnitudes
// for FrequencyBins bins, the way a browser AnalyserNode does.
type Analyser struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	window   []float64
	closed   bool
}

func NewAnalyser() *Analyser {
	w := make([]float64, fftSize)
	// Blackman window, alpha 0.16
	a0, a1, a2 := 0.42, 0.5, 0.08
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(fftSize)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return &Analyser{
		ring:     make([]float64, fftSize),
		smoothed: make([]float64, FrequencyBins),
		window:   w,
	}
}

// Write appends PCM16LE samples. Writes after Close are dropped.
func (a *Analyser) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		a.ring[a.pos] = float64(s) / 32768.0
		a.pos = (a.pos + 1) % fftSize
	}
}

// ByteFrequencyData fills dst (up to FrequencyBins entries) with magnitudes in 0..255.
// It returns false once the analyser has been closed.
func (a *Analyser) ByteFrequencyData(dst []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}

	buf := make([]complex128, fftSize)
	for i := 0; i < fftSize; i++ {
		buf[i] = complex(a.ring[(a.pos+i)%fftSize]*a.window[i], 0)
	}
	fft(buf)

	n := len(dst)
	if n > FrequencyBins {
		n = FrequencyBins
	}
	for k := 0; k < FrequencyBins; k++ {
		mag := cmplx.Abs(buf[k]) / fftSize
		a.smoothed[k] = smoothingFactor*a.smoothed[k] + (1-smoothingFactor)*mag
		if k >= n {
			continue
		}
		db := minDecibels
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		dst[k] = byte(v)
	}
	return true
}

// Close releases the analyser. It is safe to call more than once.
func (a *Analyser) Close() {
	a.mu.Lock()
	a.closed = true
	a.ring = nil
	a.smoothed = nil
	a.mu.Unlock()
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform; len(x) must be a power of two.
func fft(x []complex128) {
	n := len(x)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				u := x[start+k]
				v := x[start+k+size/2] * w
				x[start+k] = u + v
				x[start+k+size/2] = u - v
				w *= step
			}
		}
	}
}
