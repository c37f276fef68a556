package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"lozenge/pkg/runner"
)

// Outcome pairs a job with its run result. Result is nil when the job failed
// before execution (parse, generation or load error).
type Outcome struct {
	Job    Job
	Result *runner.Result
	Err    error
}

// Start launches workers that drain queue through r. The returned channel is
// closed once every worker has stopped, either because the queue was closed
// and drained or because ctx was canceled.
func Start(ctx context.Context, r *runner.Runner, queue JobQueue, workers int) <-chan Outcome {
	if workers < 1 {
		workers = 1
	}
	out := make(chan Outcome, workers)

	slog.Info("👷 Workers started", "count", workers)

	var wg sync.WaitGroup
	for id := 1; id <= workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				job, err := queue.Pop(ctx)
				if err != nil {
					if !errors.Is(err, ErrQueueClosed) && ctx.Err() == nil {
						slog.Error("❌ Worker queue error", "worker", id, "error", err)
					}
					return
				}

				slog.Debug("⚡ Job received", "worker", id, "job", job.Name)
				res, err := r.RunSource(ctx, job.Name, bytes.NewReader(job.Source))

				select {
				case out <- Outcome{Job: job, Result: res, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}(id)
	}

	go func() {
		wg.Wait()
		slog.Info("👷 Workers stopped")
		close(out)
	}()
	return out
}
