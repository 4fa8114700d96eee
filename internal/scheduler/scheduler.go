// Package scheduler drives the resumable batch run: bounded batches
// of pending documents under a hard wall-clock ceiling, durable
// checkpoints between attempts, and self-continuation through an
// external delayed re-invocation.
//
// The design assumes at most one live invocation at a time; the
// in-process guard rejects a second Start, and cross-process exclusion
// is a deployment constraint. Cancellation flips the durable active
// flag and is observed at the next batch-start check.
//
// current_batch is incremented only when a batch completes normally; a
// ceiling exit flushes the committed sub-batch but leaves the counter,
// so progress reporting can understate work actually done.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
	"github.com/dpereira/closings-tracker/internal/extract"
	"github.com/dpereira/closings-tracker/internal/ledger"
	"github.com/dpereira/closings-tracker/internal/pipeline"
	"github.com/dpereira/closings-tracker/internal/source"
	"github.com/dpereira/closings-tracker/internal/state"
	"github.com/dpereira/closings-tracker/internal/store"
)

// Config holds the externally supplied batch constants.
type Config struct {
	BatchSize   int
	Delay       time.Duration
	MaxRetries  int
	TimeCeiling time.Duration
}

// Deps wires the scheduler to its collaborators. Ledger may be nil
// when no merge target is configured.
type Deps struct {
	Props         state.PropertyStore
	Source        source.Source
	Processor     *pipeline.Processor
	Ledger        *ledger.MergeWriter
	Dest          store.Destination
	Continuations ContinuationScheduler
	Logger        *slog.Logger
	Now           func() time.Time
}

// Scheduler is the single logical owner of the durable RunState.
type Scheduler struct {
	cfg  Config
	deps Deps

	running bool
	done    chan struct{}

	// attempted holds item identifiers already reached in this run.
	// Items that were attempted but not marked (artifact cache hits,
	// item-level errors) would otherwise stay pending forever; forced
	// runs treat every document as pending and need it to terminate.
	attempted map[string]struct{}

	// runStats accumulates the per-batch counters across the run.
	runStats entity.BatchStats
}

func New(cfg Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Scheduler{cfg: cfg, deps: deps}
}

// Start cancels pending continuations, resets the run state and runs
// the first batch synchronously.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running {
		return common.NewAppError("RUN_ACTIVE", "a run is already in progress", common.ErrInvalidInput)
	}
	s.running = true
	s.done = make(chan struct{})

	s.deps.Continuations.CancelAll()
	s.attempted = make(map[string]struct{})
	s.runStats = entity.BatchStats{}
	rs := state.NewRunState(s.deps.Now())
	if err := state.Save(ctx, s.deps.Props, rs); err != nil {
		s.finish()
		return err
	}
	s.deps.Logger.Info("run.start", "run_id", rs.RunID, "batch_size", s.cfg.BatchSize)

	return s.Step(ctx)
}

// Step executes one batch attempt. Continuations re-enter here; so
// does a manual resume.
func (s *Scheduler) Step(ctx context.Context) error {
	rs, ok, err := state.Load(ctx, s.deps.Props)
	if err != nil {
		return err
	}
	if !ok || !rs.Active {
		// Paused or cancelled: exit without scheduling anything.
		s.deps.Logger.Info("batch.skip.inactive")
		s.finish()
		return nil
	}

	if err := s.runBatch(ctx, rs); err != nil {
		return s.handleBatchError(ctx, rs, err)
	}
	return nil
}

// Resume re-activates a paused run and executes the next batch step
// against the persisted counters.
func (s *Scheduler) Resume(ctx context.Context) error {
	if s.running {
		return common.NewAppError("RUN_ACTIVE", "a run is already in progress", common.ErrInvalidInput)
	}
	s.running = true
	s.done = make(chan struct{})

	if err := state.SetActive(ctx, s.deps.Props, true); err != nil {
		s.finish()
		return err
	}
	return s.Step(ctx)
}

// Done is closed once the run reaches a terminal state or pauses.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Pause flips the durable active flag; a batch already in progress
// runs to completion or to the ceiling before honoring it.
func (s *Scheduler) Pause(ctx context.Context) error {
	return state.SetActive(ctx, s.deps.Props, false)
}

func (s *Scheduler) runBatch(ctx context.Context, rs *state.RunState) error {
	attemptStart := s.deps.Now()
	deadline := attemptStart.Add(s.cfg.TimeCeiling)

	docs, err := s.deps.Source.Fetch(ctx)
	if err != nil {
		return common.NewAppError("BATCH_ERROR", fmt.Sprintf("enumerate pending documents: %v", err), common.ErrBatch)
	}

	if s.attempted == nil {
		// Resumed in a fresh process: previously unmarked items get
		// one more attempt and settle through the artifact cache.
		s.attempted = make(map[string]struct{})
	}

	// Index skips and attempted-set exclusions are counted apart: only
	// the former mean "already processed", the latter are items this
	// run reached earlier without marking (cache hits, item errors).
	stats := entity.BatchStats{Found: len(docs)}
	alreadyAttempted := 0
	var pending []entity.Document
	for i := range docs {
		if !s.deps.Processor.IsPending(&docs[i]) {
			stats.AlreadyProcessed++
			continue
		}
		id := extract.ItemID(docs[i].ReceivedAt, docs[i].Label)
		if _, seen := s.attempted[id]; seen {
			alreadyAttempted++
			continue
		}
		pending = append(pending, docs[i])
	}

	batch := pending
	if len(batch) > s.cfg.BatchSize {
		batch = batch[:s.cfg.BatchSize]
	}

	var (
		records    []*entity.FinancialRecord
		created    []store.Relocation
		attempted  int
		ceilingHit bool
	)
	for i := range batch {
		if !s.deps.Now().Before(deadline) {
			ceilingHit = true
			s.deps.Logger.Warn("batch.ceiling",
				"attempted", attempted, "batch", rs.CurrentBatch,
				"elapsed", s.deps.Now().Sub(attemptStart))
			break
		}
		attempted++
		s.attempted[extract.ItemID(batch[i].ReceivedAt, batch[i].Label)] = struct{}{}

		out, err := s.deps.Processor.ProcessDocument(ctx, &batch[i])
		if err != nil {
			if errors.Is(err, common.ErrExtraction) || errors.Is(err, common.ErrStorage) {
				// Local recovery: record and continue with siblings.
				stats.Errors++
				s.deps.Logger.Warn("batch.item_failed", "source", batch[i].Name, "error", err)
				continue
			}
			return err
		}

		if out.Skipped {
			stats.AlreadyProcessed++
			continue
		}
		if out.Created {
			stats.Created++
			if d, err := extract.NormalizeDate(out.Record.ClosureDate); err == nil {
				created = append(created, store.Relocation{Name: out.ArtifactName, DateISO: d})
			}
		} else {
			stats.Existing++
		}
		if out.Marked {
			stats.NewlyProcessed++
		}
		if out.Record != nil {
			records = append(records, out.Record)
		}
	}

	// Durable index append covers everything decided so far, ceiling
	// exit included.
	if err := s.deps.Processor.Index.Flush(); err != nil {
		return err
	}

	if s.deps.Ledger != nil && len(records) > 0 {
		if _, err := s.deps.Ledger.Apply(records); err != nil {
			return err
		}
	}
	store.RelocateByDate(s.deps.Dest, created, s.deps.Logger)

	if ceilingHit {
		// The batch counter intentionally stays put on a ceiling exit.
		rs.FilesProcessed += stats.NewlyProcessed
	} else {
		rs.CurrentBatch++
		rs.FilesProcessed += stats.NewlyProcessed
		rs.FailedAttempts = 0
	}

	s.runStats.Add(stats)

	s.deps.Logger.Info("batch.done",
		"run_id", rs.RunID,
		"batch", rs.CurrentBatch,
		"found", stats.Found,
		"already_processed", stats.AlreadyProcessed,
		"already_attempted", alreadyAttempted,
		"newly_processed", stats.NewlyProcessed,
		"created", stats.Created,
		"existing", stats.Existing,
		"errors", stats.Errors,
		"ceiling_hit", ceilingHit,
	)

	remaining := len(pending) - attempted
	if remaining > 0 {
		if err := state.Save(ctx, s.deps.Props, rs); err != nil {
			return err
		}
		s.scheduleContinuation()
		return nil
	}

	rs.Active = false
	if err := state.Save(ctx, s.deps.Props, rs); err != nil {
		return err
	}
	s.deps.Continuations.CancelAll()
	s.deps.Logger.Info("run.completed",
		"run_id", rs.RunID,
		"batches", rs.CurrentBatch-1,
		"files_processed", rs.FilesProcessed,
		"created", s.runStats.Created,
		"existing", s.runStats.Existing,
		"errors", s.runStats.Errors,
	)
	s.finish()
	return nil
}

// RunStats returns the counters accumulated across this run's batches.
func (s *Scheduler) RunStats() entity.BatchStats { return s.runStats }

// handleBatchError implements the retry ladder for errors that escape
// per-item handling: best-effort flush, bounded reschedule, then a
// fatal stop that leaves the last counters as the audit trail.
func (s *Scheduler) handleBatchError(ctx context.Context, rs *state.RunState, cause error) error {
	if err := s.deps.Processor.Index.Flush(); err != nil {
		s.deps.Logger.Error("batch.flush_failed", "error", err)
	}

	rs.FailedAttempts++
	s.deps.Logger.Error("batch.failed",
		"run_id", rs.RunID,
		"attempt", rs.FailedAttempts,
		"max_retries", s.cfg.MaxRetries,
		"error", cause,
	)

	if rs.FailedAttempts >= s.cfg.MaxRetries {
		rs.Active = false
		if err := state.Save(ctx, s.deps.Props, rs); err != nil {
			s.deps.Logger.Error("run.state_save_failed", "error", err)
		}
		s.deps.Continuations.CancelAll()
		s.finish()
		return common.NewAppError("RUN_FAILED",
			fmt.Sprintf("giving up after %d failed attempts: %v", rs.FailedAttempts, cause),
			common.ErrFatalRun)
	}

	if err := state.Save(ctx, s.deps.Props, rs); err != nil {
		return err
	}
	s.scheduleContinuation()
	return nil
}

func (s *Scheduler) scheduleContinuation() {
	s.deps.Continuations.ScheduleAfter(s.cfg.Delay, func() {
		if err := s.Step(context.Background()); err != nil {
			s.deps.Logger.Error("continuation.failed", "error", err)
		}
	})
}

func (s *Scheduler) finish() {
	s.running = false
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}
