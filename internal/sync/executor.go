package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/internal/upstream"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// Session is an authenticated upstream session scoped to one chunk.
type Session interface {
	QueryDailyBars(ctx context.Context, code, start, end string) ([]store.Record, error)
	Logout(ctx context.Context)
}

// Source opens upstream sessions. The executor holds one source per
// egress transport and alternates between them on round parity.
type Source interface {
	Login(ctx context.Context) (Session, error)
}

// NewUpstreamSource adapts an upstream client to the Source interface.
func NewUpstreamSource(c *upstream.Client) Source {
	return upstreamSource{c: c}
}

type upstreamSource struct{ c *upstream.Client }

func (s upstreamSource) Login(ctx context.Context) (Session, error) {
	session, err := s.c.Login(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Result is the final accounting of one sync run.
type Result struct {
	Planned     int
	Succeeded   int
	Failed      int
	Rounds      int
	Aborted     bool
	FailedCodes []string
}

// Executor turns a task list into updated series files with bounded
// latency and bounded damage from systemic upstream failures.
type Executor struct {
	store   *store.Store
	direct  Source
	proxied Source // nil when no proxy is configured
	cfg     config.SyncConfig
	logger  *logger.Logger
}

// NewExecutor creates an Executor. proxied may be nil; direct egress is
// then used on every round.
func NewExecutor(st *store.Store, direct, proxied Source, cfg config.SyncConfig, log *logger.Logger) *Executor {
	return &Executor{
		store:   st,
		direct:  direct,
		proxied: proxied,
		cfg:     cfg,
		logger:  log.WithField("module", "executor"),
	}
}

// chunkOutcome reports one processed chunk.
type chunkOutcome struct {
	succeeded []string // codes
	failed    []string
}

// Run executes the plan: successive rounds over the not-yet-succeeded
// tasks, each round a chunked worker-pool pass, until every task
// succeeded, MaxAttempts rounds are exhausted, or the circuit breaker
// trips.
func (e *Executor) Run(ctx context.Context, tasks []Task, now time.Time) *Result {
	result := &Result{Planned: len(tasks)}
	if len(tasks) == 0 {
		return result
	}

	today := now.Format("2006-01-02")
	finished := make(map[string]bool, len(tasks))

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		pending := make([]Task, 0, len(tasks))
		for _, t := range tasks {
			if !finished[t.Symbol.Code] {
				pending = append(pending, t)
			}
		}
		if len(pending) == 0 {
			break
		}

		useProxy := attempt%2 == 0 && e.proxied != nil
		source := e.direct
		if useProxy {
			source = e.proxied
		}

		result.Rounds = attempt
		e.logger.WithFields(map[string]interface{}{
			"attempt":   attempt,
			"max":       e.cfg.MaxAttempts,
			"remaining": len(pending),
			"proxy":     useProxy,
		}).Info("Sync round started")

		aborted := e.runRound(ctx, source, pending, today, finished)
		if aborted {
			result.Aborted = true
			e.logger.Warn("Circuit breaker tripped, aborting run")
			break
		}

		if len(finished) < len(tasks) && attempt < e.cfg.MaxAttempts {
			select {
			case <-time.After(e.cfg.RetryPause):
			case <-ctx.Done():
				result.Aborted = true
				attempt = e.cfg.MaxAttempts // stop retrying
			}
		}
		if result.Aborted {
			break
		}
	}

	result.Succeeded = len(finished)
	for _, t := range tasks {
		if !finished[t.Symbol.Code] {
			result.FailedCodes = append(result.FailedCodes, t.Symbol.Code)
		}
	}
	result.Failed = len(result.FailedCodes)

	e.logger.WithFields(map[string]interface{}{
		"planned":   result.Planned,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"rounds":    result.Rounds,
		"aborted":   result.Aborted,
	}).Info("Sync run finished")

	return result
}

// runRound pushes the pending tasks through the worker pool in chunks.
// It returns true when the circuit breaker tripped: once accumulated
// chunk failures reach AbortThreshold with no interleaved success, no
// new chunks are scheduled and in-flight chunks wind down.
func (e *Executor) runRound(ctx context.Context, source Source, pending []Task, today string, finished map[string]bool) bool {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := chunkTasks(pending, e.cfg.ChunkSize)
	chunkCh := make(chan []Task)
	outCh := make(chan chunkOutcome)

	var wg stdsync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunkCh {
				outCh <- e.runChunk(roundCtx, source, chunk, today)
			}
		}()
	}

	// Feeder stops scheduling new chunks once the round is cancelled.
	go func() {
		defer close(chunkCh)
		for _, chunk := range chunks {
			select {
			case chunkCh <- chunk:
			case <-roundCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	consecutiveFails := 0
	aborted := false
	for outcome := range outCh {
		for _, code := range outcome.succeeded {
			finished[code] = true
		}

		if len(outcome.succeeded) > 0 {
			consecutiveFails = 0
		} else {
			consecutiveFails += len(outcome.failed)
		}

		if !aborted && consecutiveFails >= e.cfg.AbortThreshold {
			aborted = true
			cancel()
		}
	}

	return aborted
}

// runChunk authenticates once, fetches and merges every task in the
// chunk, and always logs out, including on panic or cancellation.
// Per-task failures never abort the chunk.
func (e *Executor) runChunk(ctx context.Context, source Source, chunk []Task, today string) (outcome chunkOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("Chunk worker panicked")
			outcome = chunkOutcome{failed: chunkCodes(chunk)}
		}
	}()

	session, err := source.Login(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Chunk login failed")
		return chunkOutcome{failed: chunkCodes(chunk)}
	}
	defer func() {
		// Logout must happen even when the round was cancelled.
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer logoutCancel()
		session.Logout(logoutCtx)
	}()

	for _, task := range chunk {
		if ctx.Err() != nil {
			// Round cancelled: current task finished, the rest of the
			// chunk is not attempted this round.
			outcome.failed = append(outcome.failed, task.Symbol.Code)
			continue
		}

		if err := e.fetchAndMerge(ctx, session, task, today); err != nil {
			e.logger.WithError(err).WithField("code", task.Symbol.Code).Debug("Task failed")
			outcome.failed = append(outcome.failed, task.Symbol.Code)
			continue
		}
		outcome.succeeded = append(outcome.succeeded, task.Symbol.Code)
	}
	return outcome
}

// fetchAndMerge downloads one task's window and merges it into the
// store. An empty response is success: nothing new is not a failure.
func (e *Executor) fetchAndMerge(ctx context.Context, session Session, task Task, today string) error {
	records, err := session.QueryDailyBars(ctx, task.Symbol.Code, task.StartDate, today)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	mode := store.MergeAppend
	if task.Mode == FetchFull {
		mode = store.MergeFull
	}
	return e.store.Merge(task.Symbol, records, mode)
}

func chunkTasks(tasks []Task, size int) [][]Task {
	if size < 1 {
		size = 1
	}
	var chunks [][]Task
	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[start:end])
	}
	return chunks
}

func chunkCodes(chunk []Task) []string {
	codes := make([]string, len(chunk))
	for i, t := range chunk {
		codes[i] = t.Symbol.Code
	}
	return codes
}
