package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/jobs"
	"github.com/dvloznov/ledger-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
)

// Failure records a source that contributed no rows.
type Failure struct {
	Source   string
	Attempts int
	Err      error
}

// Result is the outcome of loading all sources of a run. Batches keep the
// order of the requested sources; failed sources are absent.
type Result struct {
	Batches  []*domain.Batch
	Failures []Failure
	Stats    map[string]DecodeStats
}

// Loader fetches and decodes batches concurrently on an in-memory job queue.
// Fetch errors are retried with exponential backoff; decode errors are not.
type Loader struct {
	fetcher Fetcher
	opts    inmemory.Options
	store   jobs.JobStore
}

// NewLoader returns a loader. store may be nil.
func NewLoader(fetcher Fetcher, opts inmemory.Options, store jobs.JobStore) *Loader {
	return &Loader{fetcher: fetcher, opts: opts, store: store}
}

type slot struct {
	batch *domain.Batch
	stats DecodeStats
	fail  *Failure
}

// Load reads every source. A source that keeps failing is reported in
// Result.Failures; the only returned error is context cancellation or a
// queue failure.
func (l *Loader) Load(ctx context.Context, runID string, sources []string) (*Result, error) {
	log := logger.FromContext(ctx)
	res := &Result{Stats: make(map[string]DecodeStats)}
	if len(sources) == 0 {
		return res, nil
	}

	slots := make([]slot, len(sources))
	index := make(map[string]int, len(sources))
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(sources))

	handler := func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.LoadBatchJob)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected job type %s", job.GetType()))
		}
		mu.Lock()
		i := index[j.JobID]
		mu.Unlock()

		data, err := l.fetcher.Fetch(ctx, j.Source)
		if err != nil {
			if j.FinalAttempt() {
				l.record(&mu, slots, i, slot{fail: &Failure{Source: j.Source, Attempts: j.RetryCount + 1, Err: err}})
				wg.Done()
			} else {
				log.Warn().Err(err).Str("source", j.Source).Int("retry", j.RetryCount+1).Msg("Fetching batch failed, retrying")
			}
			return err
		}

		batch, stats, err := DecodeBatch(data, j.Source)
		if err != nil {
			l.record(&mu, slots, i, slot{fail: &Failure{Source: j.Source, Attempts: j.RetryCount + 1, Err: err}})
			wg.Done()
			return backoff.Permanent(err)
		}

		l.record(&mu, slots, i, slot{batch: batch, stats: stats})
		wg.Done()
		return nil
	}

	q := inmemory.NewQueue(len(sources), l.store, l.opts)
	if err := q.Start(ctx, handler); err != nil {
		return nil, fmt.Errorf("Load: starting queue: %w", err)
	}
	defer func() {
		_ = q.Stop(context.Background())
		l.logJobStatuses(ctx, runID)
	}()

	for i, src := range sources {
		jobID := fmt.Sprintf("%s/%d", runID, i)
		mu.Lock()
		index[jobID] = i
		mu.Unlock()

		if err := q.PublishLoadBatch(ctx, &jobs.LoadBatchJob{JobID: jobID, Source: src, RunID: runID}); err != nil {
			return nil, fmt.Errorf("Load: publishing %s: %w", src, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("Load: %w", ctx.Err())
	}

	for i, s := range slots {
		switch {
		case s.fail != nil:
			log.Error().Err(s.fail.Err).Str("source", s.fail.Source).Int("attempts", s.fail.Attempts).
				Msg("Batch contributes no rows")
			res.Failures = append(res.Failures, *s.fail)
		case s.batch != nil:
			res.Batches = append(res.Batches, s.batch)
			res.Stats[sources[i]] = s.stats
			log.Info().Str("source", sources[i]).Str("institution", s.batch.Institution).
				Int("rows", s.batch.Len()).Int("dropped", s.stats.Dropped).Msg("Batch loaded")
		}
	}

	return res, nil
}

// logJobStatuses reports how the run's load jobs ended, as recorded by the store.
func (l *Loader) logJobStatuses(ctx context.Context, runID string) {
	if l.store == nil {
		return
	}
	log := logger.FromContext(ctx)

	listed, err := l.store.ListJobs(ctx, jobs.JobFilter{RunID: runID})
	if err != nil {
		log.Warn().Err(err).Msg("Listing load jobs failed")
		return
	}
	counts := make(map[jobs.JobStatus]int)
	for _, j := range listed {
		counts[j.Status]++
	}
	ev := log.Debug().Int("jobs", len(listed))
	for status, n := range counts {
		ev = ev.Int(string(status), n)
	}
	ev.Msg("Load jobs finished")
}

func (l *Loader) record(mu *sync.Mutex, slots []slot, i int, s slot) {
	mu.Lock()
	slots[i] = s
	mu.Unlock()
}
