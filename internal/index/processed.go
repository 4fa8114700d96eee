// Package index implements the dual-layer idempotency mechanism: a
// durable processed-item log and an in-memory destination artifact
// cache. Together they bound every logical item to at most one
// effective side effect across retries, crashes and forced re-runs.
package index

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/extract"
)

// ProcessedIndex is the append-only log of handled item identifiers,
// one per line. The whole log is loaded into memory when opened;
// identifiers accumulate in a pending buffer and are appended in one
// write once the flush threshold is reached. The file is only ever
// rewritten by the out-of-band RemoveDay maintenance operation.
type ProcessedIndex struct {
	path      string
	threshold int
	logger    *slog.Logger

	seen    map[string]struct{}
	pending []string
}

// OpenProcessed loads the full log into an in-memory set. A missing
// file is an empty index, not an error.
func OpenProcessed(path string, flushThreshold int, logger *slog.Logger) (*ProcessedIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if flushThreshold <= 0 {
		flushThreshold = 20
	}

	x := &ProcessedIndex{
		path:      path,
		threshold: flushThreshold,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return x, nil
		}
		return nil, common.NewStorageError("open", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			x.seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.NewStorageError("read", path, err)
	}

	logger.Debug("index.loaded", "path", path, "entries", len(x.seen))
	return x, nil
}

// Contains reports whether an identifier has already been handled,
// including identifiers marked earlier in the same run but not yet
// flushed.
func (x *ProcessedIndex) Contains(id string) bool {
	_, ok := x.seen[id]
	return ok
}

// Mark records an identifier as processed. The in-memory set is
// updated immediately so later documents in the same run see it; the
// durable append happens when the pending buffer reaches the flush
// threshold, or on Flush.
func (x *ProcessedIndex) Mark(id string) error {
	if _, ok := x.seen[id]; ok {
		return nil
	}
	x.seen[id] = struct{}{}
	x.pending = append(x.pending, id)
	if len(x.pending) >= x.threshold {
		return x.Flush()
	}
	return nil
}

// Flush appends every pending identifier in one write. Safe to call
// with an empty buffer; also the best-effort path on batch failure.
func (x *ProcessedIndex) Flush() error {
	if len(x.pending) == 0 {
		return nil
	}

	f, err := os.OpenFile(x.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return common.NewStorageError("append", x.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(x.pending, "\n") + "\n"); err != nil {
		return common.NewStorageError("append", x.path, err)
	}

	x.logger.Debug("index.flush", "path", x.path, "appended", len(x.pending))
	x.pending = x.pending[:0]
	return nil
}

// Pending returns how many identifiers await a durable append.
func (x *ProcessedIndex) Pending() int { return len(x.pending) }

// Len returns the number of known identifiers.
func (x *ProcessedIndex) Len() int { return len(x.seen) }

// IDs returns a snapshot of every known identifier (diagnostics).
func (x *ProcessedIndex) IDs() []string {
	out := make([]string, 0, len(x.seen))
	for id := range x.seen {
		out = append(out, id)
	}
	return out
}

// RemoveDay is the out-of-band maintenance operation: it rewrites the
// whole log dropping every identifier whose timestamp prefix falls on
// the given day, and returns how many entries were removed.
func (x *ProcessedIndex) RemoveDay(day time.Time) (int, error) {
	if err := x.Flush(); err != nil {
		return 0, err
	}

	prefix := extract.DayPrefix(day)
	kept := make([]string, 0, len(x.seen))
	removed := 0
	for id := range x.seen {
		if strings.HasPrefix(id, prefix) {
			delete(x.seen, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	if removed == 0 {
		return 0, nil
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}
	if err := os.WriteFile(x.path, []byte(content), 0o644); err != nil {
		return 0, common.NewStorageError("rewrite", x.path, err)
	}

	x.logger.Info("index.rewrite", "path", x.path, "removed", removed, "kept", len(kept))
	return removed, nil
}
