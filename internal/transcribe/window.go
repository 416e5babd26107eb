package transcribe

import (
	"fmt"
	"time"
)

// Window is one slice of a sample buffer, in sample indices [Start, End).
type Window struct {
	Index int
	Start int
	End   int
}

// Plan returns the windows covering n samples at sampleRate. Each window is
// windowLen long and consecutive windows start windowLen-2*stride apart, so
// every window shares stride on each side with its neighbours. The last
// window is the first one that reaches the end of the buffer; a buffer no
// longer than one window yields a single window.
func Plan(n, sampleRate int, windowLen, stride time.Duration) ([]Window, error) {
	if n <= 0 {
		return nil, fmt.Errorf("empty buffer")
	}
	size := samplesFor(windowLen, sampleRate)
	step := size - 2*samplesFor(stride, sampleRate)
	if size <= 0 || step <= 0 {
		return nil, fmt.Errorf("invalid window %s with stride %s", windowLen, stride)
	}

	var windows []Window
	for start := 0; ; start += step {
		end := min(start+size, n)
		windows = append(windows, Window{Index: len(windows), Start: start, End: end})
		if end == n {
			return windows, nil
		}
	}
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

func offset(sample, sampleRate int) time.Duration {
	return time.Duration(int64(sample) * int64(time.Second) / int64(sampleRate))
}
