package youtube

import (
	"fmt"
	"io"
	"log/slog"
	"math"
)

// ProgressFunc is called with (bytesWritten, totalBytes) during a download.
// totalBytes is 0 when the stream length is unknown.
type ProgressFunc func(written, total int64)

// progressWriter wraps an io.Writer and reports progress.
type progressWriter struct {
	writer   io.Writer
	total    int64
	written  int64
	callback ProgressFunc
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.callback != nil {
		pw.callback(pw.written, pw.total)
	}
	return n, err
}

func logProgress(file string) ProgressFunc {
	lastPct := -1.0
	return func(written, total int64) {
		if total <= 0 {
			return
		}
		pct := math.Min(float64(written)/float64(total)*100, 100)
		// One record per 10%.
		if math.Floor(pct/10) == math.Floor(lastPct/10) {
			return
		}
		lastPct = pct
		slog.Debug("download progress", "file", file, "percent", fmt.Sprintf("%.1f%%", pct))
	}
}
