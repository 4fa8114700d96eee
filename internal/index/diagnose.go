package index

import (
	"log/slog"
	"regexp"
	"sort"
)

var (
	idDay       = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})T`)
	artifactDay = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})_`)
)

// Report is the output of the divergence diagnostic: the invariant says
// an indexed identifier implies a materialized artifact (or a deliberate
// forced-mode no-op), and a crash between artifact creation and index
// append can leave either side ahead. Identifiers (timestamp+label) and
// artifact names (date+shift+branch) cannot be correlated item by item,
// so the comparison is per-day counts. The pass only reports; nothing
// is auto-repaired.
type Report struct {
	IndexedDays  map[string]int // day -> indexed identifiers
	ArtifactDays map[string]int // day -> artifacts found

	// MissingArtifactDays: days with more indexed identifiers than
	// artifacts. Candidates for manual inspection, not proof: forced
	// reprocessing marks items without creating, and duplicate
	// composite keys collapse several identifiers into one artifact.
	MissingArtifactDays []string

	// BackfillDays: days with more artifacts than indexed identifiers,
	// e.g. after a crash between artifact creation and index append.
	// Candidates for manual index backfill.
	BackfillDays []string
}

// Diagnose cross-checks the processed index against the artifact cache
// grouped by day.
func Diagnose(idx *ProcessedIndex, cache *ArtifactCache, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Report{
		IndexedDays:  make(map[string]int),
		ArtifactDays: make(map[string]int),
	}

	for _, id := range idx.IDs() {
		if m := idDay.FindStringSubmatch(id); m != nil {
			r.IndexedDays[m[1]+"-"+m[2]+"-"+m[3]]++
		}
	}
	for _, name := range cache.Names() {
		if m := artifactDay.FindStringSubmatch(name); m != nil {
			r.ArtifactDays[m[1]]++
		}
	}

	for day, n := range r.IndexedDays {
		if r.ArtifactDays[day] < n {
			r.MissingArtifactDays = append(r.MissingArtifactDays, day)
		}
	}
	for day, n := range r.ArtifactDays {
		if r.IndexedDays[day] < n {
			r.BackfillDays = append(r.BackfillDays, day)
		}
	}
	sort.Strings(r.MissingArtifactDays)
	sort.Strings(r.BackfillDays)

	logger.Info("diagnose.done",
		"indexed_days", len(r.IndexedDays),
		"artifact_days", len(r.ArtifactDays),
		"missing_artifact_days", len(r.MissingArtifactDays),
		"backfill_days", len(r.BackfillDays),
	)
	return r
}
