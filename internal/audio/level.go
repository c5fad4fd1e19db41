package audio

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one animation frame.
const DefaultFrameInterval = 16 * time.Millisecond

// LevelMonitor turns analyser output into normalized loudness readings.
// A reading is the mean byte magnitude over FrequencyBins divided by 128,
// so values above 1 mean clipping-range loudness; they are not clamped.
type LevelMonitor struct {
	Interval time.Duration
}

// LevelTask is the handle of a running monitor loop.
type LevelTask struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Start samples a every Interval and calls onLevel with each reading until the
// returned task is cancelled or the analyser is closed. onLevel runs on the
// monitor goroutine and must not call Cancel.
func (m LevelMonitor) Start(a *Analyser, onLevel func(float64)) *LevelTask {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	t := &LevelTask{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		bins := make([]byte, FrequencyBins)
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
			}
			if !a.ByteFrequencyData(bins) {
				return
			}
			// a stop requested while sampling wins over the reading
			select {
			case <-t.stop:
				return
			default:
			}
			if onLevel != nil {
				onLevel(Level(bins))
			}
		}
	}()
	return t
}

// Cancel stops the loop and waits for it to exit. No reading is delivered
// after Cancel returns. Safe to call more than once.
func (t *LevelTask) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed when the loop has exited.
func (t *LevelTask) Done() <-chan struct{} { return t.done }

// Level averages byte magnitudes and normalizes by 128.
func Level(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 128.0
}
