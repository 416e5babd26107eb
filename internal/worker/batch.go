package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"yt2text/internal/youtube"
)

// BatchResult is the outcome for one URL of a batch.
type BatchResult struct {
	URL    string
	Result *Result
	Err    error
}

// RunBatch runs Run for every URL with at most limit requests in flight.
// Results come back in input order. URLs naming the same video share one
// run, since runs of one video share its artifact files. A failed request
// does not cancel the others; cancelling ctx does.
func (p *Pipeline) RunBatch(ctx context.Context, urls []string, limit int) []BatchResult {
	if limit <= 0 {
		limit = 1
	}

	// groups[k] lists the input indices answered by the run of urls[groups[k][0]].
	var groups [][]int
	byKey := make(map[string]int)
	for i, u := range urls {
		key := "url:" + u
		if src, err := youtube.ParseURL(u); err == nil {
			key = "video:" + src.VideoID
		}
		if k, ok := byKey[key]; ok {
			groups[k] = append(groups[k], i)
			continue
		}
		byKey[key] = len(groups)
		groups = append(groups, []int{i})
	}
	slog.Info("starting batch", "urls", len(urls), "runs", len(groups), "max_concurrent", limit)

	results := make([]BatchResult, len(urls))
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(limit)
	for k, group := range groups {
		k, group := k, group
		g.Go(func() error {
			res, err := p.Run(ctx, urls[group[0]])
			for _, i := range group {
				results[i] = BatchResult{URL: urls[i], Result: res, Err: err}
			}
			if err != nil {
				failed.Add(int32(len(group)))
				slog.Warn("batch item failed", "item", fmt.Sprintf("%d/%d", k+1, len(groups)), "err", err)
				return nil
			}
			slog.Info("batch item completed", "item", fmt.Sprintf("%d/%d", k+1, len(groups)))
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("batch finished", "ok", len(urls)-int(failed.Load()), "failed", failed.Load())
	return results
}
