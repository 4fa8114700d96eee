// Package pipeline runs one document through extraction and the
// idempotency decision rule, producing at most one artifact per
// logical item.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/dpereira/closings-tracker/internal/entity"
	"github.com/dpereira/closings-tracker/internal/extract"
	"github.com/dpereira/closings-tracker/internal/index"
	"github.com/dpereira/closings-tracker/internal/store"
)

// Processor coordinates extract → idempotency decision → artifact
// creation for single documents. The scheduler owns batching and
// failure accounting; the processor only reads/appends the durable
// state handed to it.
type Processor struct {
	Extractor *extract.Extractor
	Index     *index.ProcessedIndex
	Cache     *index.ArtifactCache
	Dest      store.Destination
	Logger    *slog.Logger

	// Forced bypasses the index-skip check and marks items processed
	// unconditionally, so re-runs over a known range always make
	// forward progress. The artifact cache is still consulted unless
	// IgnoreCache is also set.
	Forced      bool
	IgnoreCache bool
}

func NewProcessor(ex *extract.Extractor, idx *index.ProcessedIndex, cache *index.ArtifactCache, dest store.Destination, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Extractor: ex, Index: idx, Cache: cache, Dest: dest, Logger: logger}
}

// Outcome reports what one document's pass actually did.
type Outcome struct {
	ItemID       string
	Skipped      bool // identifier already indexed, nothing attempted
	Created      bool // artifact materialized this pass
	Marked       bool // identifier appended to the pending index buffer
	ArtifactName string
	Record       *entity.FinancialRecord
}

// IsPending reports whether a document would be attempted at all.
func (p *Processor) IsPending(doc *entity.Document) bool {
	if p.Forced {
		return true
	}
	return !p.Index.Contains(extract.ItemID(doc.ReceivedAt, doc.Label))
}

// ProcessDocument applies the decision rule for one item:
//
//   - skip when not forced and the identifier is already indexed
//   - extract; a missing mandatory date is the item's error
//   - create the artifact unless the cache already holds its name
//   - mark processed only if an artifact was created, or always when
//     forced
func (p *Processor) ProcessDocument(ctx context.Context, doc *entity.Document) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{ItemID: extract.ItemID(doc.ReceivedAt, doc.Label)}

	if !p.Forced && p.Index.Contains(out.ItemID) {
		out.Skipped = true
		p.Logger.Debug("pipeline.skip.indexed", "item", out.ItemID)
		return out, nil
	}

	rec, err := p.Extractor.Extract(doc)
	if err != nil {
		return nil, err
	}
	out.Record = rec

	name, err := extract.ArtifactName(rec, doc.Ext)
	if err != nil {
		return nil, err
	}
	out.ArtifactName = name

	if p.IgnoreCache && p.Forced || !p.Cache.Contains(name) {
		if err := p.Dest.CreateFile(name, doc.Raw); err != nil {
			return nil, err
		}
		p.Cache.Add(name)
		out.Created = true
		p.Logger.Info("pipeline.artifact.created", "name", name, "item", out.ItemID)
	} else {
		p.Logger.Debug("pipeline.skip.artifact_exists", "name", name, "item", out.ItemID)
	}

	if out.Created || p.Forced {
		if err := p.Index.Mark(out.ItemID); err != nil {
			return out, err
		}
		out.Marked = true
	}
	return out, nil
}
