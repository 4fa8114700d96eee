package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
	"github.com/dpereira/closings-tracker/internal/extract"
	"github.com/dpereira/closings-tracker/internal/index"
	"github.com/dpereira/closings-tracker/internal/pipeline"
	"github.com/dpereira/closings-tracker/internal/state"
	"github.com/dpereira/closings-tracker/internal/store"
)

// fakeContinuations records scheduled jobs and lets the test fire them
// by hand, so runs span "continuations" without real timers.
type fakeContinuations struct {
	mu   sync.Mutex
	jobs []func()
}

func (f *fakeContinuations) ScheduleAfter(_ time.Duration, job func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *fakeContinuations) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = nil
}

// fireNext pops and runs the oldest pending continuation.
func (f *fakeContinuations) fireNext(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	if len(f.jobs) == 0 {
		f.mu.Unlock()
		t.Fatal("no continuation scheduled")
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	f.mu.Unlock()
	job()
}

func (f *fakeContinuations) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeClock advances only when told to, letting tests drive the
// ceiling check deterministically.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.tick)
	return c.now
}

type fakeSource struct {
	docs []entity.Document
	err  error
}

func (s *fakeSource) Fetch(context.Context) ([]entity.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

func closureDoc(label, date, tm string) entity.Document {
	text := "ACME COMERCIO LTDA - Filial: Centro\n" +
		"Data fechamento: " + date + " " + tm + "\n" +
		"Total vendas: R$ 100,00\n"
	return entity.Document{
		Name:       label + ".txt",
		Label:      label,
		Ext:        "txt",
		Text:       text,
		Raw:        []byte(text),
		ReceivedAt: time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC),
	}
}

type harness struct {
	sched *Scheduler
	props *state.Memory
	cont  *fakeContinuations
	clock *fakeClock
	proc  *pipeline.Processor
	root  string
}

func newHarness(t *testing.T, cfg Config, src docSource) *harness {
	t.Helper()
	destRoot := t.TempDir()

	idx, err := index.OpenProcessed(filepath.Join(t.TempDir(), "processed.log"), 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	cache, err := index.ScanArtifacts(destRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	dest, err := store.NewFSDestination(destRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	proc := pipeline.NewProcessor(extract.New(common.DefaultAnchors(), 16, nil), idx, cache, dest, nil)

	props := state.NewMemory()
	cont := &fakeContinuations{}
	clock := &fakeClock{now: time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC)}

	sched := New(cfg, Deps{
		Props:         props,
		Source:        src,
		Processor:     proc,
		Dest:          dest,
		Continuations: cont,
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Now:           clock.Now,
	})
	return &harness{sched: sched, props: props, cont: cont, clock: clock, proc: proc, root: destRoot}
}

// docSource mirrors the source interface so the harness signature
// stays short.
type docSource interface {
	Fetch(context.Context) ([]entity.Document, error)
}

func loadState(t *testing.T, props state.PropertyStore) *state.RunState {
	t.Helper()
	rs, ok, err := state.Load(context.Background(), props)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no run state persisted")
	}
	return rs
}

func TestRunCompletesAcrossContinuations(t *testing.T) {
	docs := make([]entity.Document, 5)
	for i := range docs {
		// Distinct dates: each document yields its own artifact.
		docs[i] = closureDoc(fmt.Sprintf("fechamento loja %d", i), fmt.Sprintf("%02d/07/2025", 15+i), "09:00:00")
		docs[i].ReceivedAt = docs[i].ReceivedAt.Add(time.Duration(i) * time.Minute)
	}
	cfg := Config{BatchSize: 2, Delay: time.Minute, MaxRetries: 3, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{docs: docs})

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// 5 pending / batches of 2: two continuations, then completion.
	h.cont.fireNext(t)
	h.cont.fireNext(t)

	select {
	case <-h.sched.Done():
	default:
		t.Fatal("run did not reach a terminal state")
	}
	if h.cont.pending() != 0 {
		t.Errorf("continuations left pending: %d", h.cont.pending())
	}

	rs := loadState(t, h.props)
	if rs.Active {
		t.Error("run still marked active")
	}
	if rs.FilesProcessed != 5 {
		t.Errorf("files_processed = %d, want 5", rs.FilesProcessed)
	}
	if rs.CurrentBatch != 4 {
		t.Errorf("current_batch = %d, want 4", rs.CurrentBatch)
	}
	if h.proc.Index.Len() != 5 || h.proc.Index.Pending() != 0 {
		t.Errorf("index len=%d pending=%d", h.proc.Index.Len(), h.proc.Index.Pending())
	}
	total := h.sched.RunStats()
	if total.Created != 5 || total.NewlyProcessed != 5 || total.Errors != 0 {
		t.Errorf("run stats = %+v", total)
	}
}

func TestDuplicateArtifactsStillTerminate(t *testing.T) {
	// Three documents deriving the same artifact name: only the first
	// creates (and is marked); the others hit the cache and stay
	// unmarked, yet the run must still reach Completed.
	docs := make([]entity.Document, 3)
	for i := range docs {
		docs[i] = closureDoc(fmt.Sprintf("fechamento via %d", i), "15/07/2025", "09:00:00")
		docs[i].ReceivedAt = docs[i].ReceivedAt.Add(time.Duration(i) * time.Minute)
	}
	cfg := Config{BatchSize: 1, Delay: time.Minute, MaxRetries: 3, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{docs: docs})

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for fired := 0; h.cont.pending() > 0; fired++ {
		if fired > 10 {
			t.Fatal("run does not terminate")
		}
		h.cont.fireNext(t)
	}

	rs := loadState(t, h.props)
	if rs.Active {
		t.Error("run still active")
	}
	if rs.FilesProcessed != 1 {
		t.Errorf("files_processed = %d, want 1", rs.FilesProcessed)
	}
	if h.proc.Index.Len() != 1 {
		t.Errorf("index len = %d, want 1", h.proc.Index.Len())
	}
	// The duplicates surface as cache hits; "already processed" counts
	// genuine index skips only, not in-run attempted-set exclusions.
	total := h.sched.RunStats()
	if total.Created != 1 || total.Existing != 2 {
		t.Errorf("run stats = %+v", total)
	}
	if total.AlreadyProcessed != 2 {
		t.Errorf("already_processed = %d, want 2 (index skips only)", total.AlreadyProcessed)
	}
}

func TestPauseStopsAtBatchBoundary(t *testing.T) {
	docs := []entity.Document{
		closureDoc("fechamento a", "15/07/2025", "09:00:00"),
		closureDoc("fechamento b", "16/07/2025", "09:00:00"),
	}
	docs[1].ReceivedAt = docs[1].ReceivedAt.Add(time.Minute)

	cfg := Config{BatchSize: 1, Delay: time.Minute, MaxRetries: 3, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{docs: docs})

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.cont.pending() != 1 {
		t.Fatalf("want one continuation, have %d", h.cont.pending())
	}

	if err := h.sched.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	h.cont.fireNext(t)

	rs := loadState(t, h.props)
	if rs.Active {
		t.Error("paused run still active")
	}
	// Only the first batch ran.
	if rs.FilesProcessed != 1 {
		t.Errorf("files_processed = %d, want 1", rs.FilesProcessed)
	}
	if h.cont.pending() != 0 {
		t.Error("paused step scheduled another continuation")
	}
}

func TestRepeatedBatchFailureTurnsFatal(t *testing.T) {
	cfg := Config{BatchSize: 2, Delay: time.Minute, MaxRetries: 3, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{err: errors.New("inbox unreachable")})

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.cont.fireNext(t) // attempt 2, reschedules
	if h.cont.pending() != 1 {
		t.Fatalf("want one continuation after second failure, have %d", h.cont.pending())
	}
	h.cont.fireNext(t) // attempt 3: exhausted

	rs := loadState(t, h.props)
	if rs.Active {
		t.Error("failed run still active")
	}
	if rs.FailedAttempts != 3 {
		t.Errorf("failed_attempts = %d, want 3", rs.FailedAttempts)
	}
	if rs.Phase() != constants.RunPhaseFailed {
		t.Errorf("phase = %q, want FAILED", rs.Phase())
	}
	if h.cont.pending() != 0 {
		t.Error("fatal stop left continuations pending")
	}
}

func TestFatalErrorSurfacesFromStart(t *testing.T) {
	cfg := Config{BatchSize: 2, Delay: time.Minute, MaxRetries: 1, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{err: errors.New("inbox unreachable")})

	err := h.sched.Start(context.Background())
	if !errors.Is(err, common.ErrFatalRun) {
		t.Fatalf("want fatal run error, got %v", err)
	}
}

func TestCeilingExitCheckpointsDecidedItems(t *testing.T) {
	docs := make([]entity.Document, 4)
	for i := range docs {
		docs[i] = closureDoc(fmt.Sprintf("fechamento %d", i), fmt.Sprintf("%02d/07/2025", 15+i), "09:00:00")
		docs[i].ReceivedAt = docs[i].ReceivedAt.Add(time.Duration(i) * time.Minute)
	}
	// Each Now() call advances the clock 90s against a 4m ceiling: the
	// deadline passes partway through the batch.
	cfg := Config{BatchSize: 4, Delay: time.Minute, MaxRetries: 3, TimeCeiling: 4 * time.Minute}
	h := newHarness(t, cfg, &fakeSource{docs: docs})
	h.clock.tick = 90 * time.Second

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rs := loadState(t, h.props)
	if !rs.Active {
		t.Fatal("interrupted run must stay active")
	}
	// Ceiling exit does not advance the batch counter.
	if rs.CurrentBatch != 1 {
		t.Errorf("current_batch = %d, want 1", rs.CurrentBatch)
	}
	if rs.FilesProcessed == 0 || rs.FilesProcessed == len(docs) {
		t.Errorf("files_processed = %d, want partial progress", rs.FilesProcessed)
	}
	if h.proc.Index.Pending() != 0 {
		t.Error("ceiling exit must flush the index")
	}
	if h.cont.pending() != 1 {
		t.Fatalf("want a continuation after ceiling exit, have %d", h.cont.pending())
	}

	// Relax the clock and let the run finish.
	h.clock.tick = 0
	for h.cont.pending() > 0 {
		h.cont.fireNext(t)
	}
	rs = loadState(t, h.props)
	if rs.Active {
		t.Error("run did not complete after ceiling recovery")
	}
	if rs.FilesProcessed != len(docs) {
		t.Errorf("files_processed = %d, want %d", rs.FilesProcessed, len(docs))
	}
}

func TestPerItemExtractionFailureDoesNotAbortBatch(t *testing.T) {
	good := closureDoc("fechamento bom", "15/07/2025", "09:00:00")
	bad := entity.Document{
		Name:       "ruim.txt",
		Label:      "ruim",
		Ext:        "txt",
		Text:       "sem data de fechamento",
		Raw:        []byte("sem data de fechamento"),
		ReceivedAt: time.Date(2025, 7, 15, 15, 1, 0, 0, time.UTC),
	}

	cfg := Config{BatchSize: 5, Delay: time.Minute, MaxRetries: 3, TimeCeiling: time.Hour}
	h := newHarness(t, cfg, &fakeSource{docs: []entity.Document{bad, good}})

	if err := h.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rs := loadState(t, h.props)
	if rs.Active {
		t.Error("run should complete despite the bad item")
	}
	if rs.FailedAttempts != 0 {
		t.Errorf("failed_attempts = %d, item errors must not count as batch failures", rs.FailedAttempts)
	}
	if rs.FilesProcessed != 1 {
		t.Errorf("files_processed = %d, want 1", rs.FilesProcessed)
	}
	// The good item's artifact landed in its date container.
	if _, err := os.Stat(filepath.Join(h.root, "2025-07-15", "Fechamento_2025-07-15_Morning_Centro.txt")); err != nil {
		t.Errorf("relocated artifact missing: %v", err)
	}
	total := h.sched.RunStats()
	if total.Errors != 1 || total.Created != 1 {
		t.Errorf("run stats = %+v", total)
	}
}
