package store

import (
	"log/slog"
	"sort"
)

// Relocation is one artifact awaiting its move into a date container.
type Relocation struct {
	Name    string // artifact filename at the destination root
	DateISO string // normalized closure date, container name
}

// RelocateByDate groups artifacts by normalized date, finds or creates
// each date container and moves the files in. A per-file move failure
// is logged and does not abort its group; the artifact cache scanning
// both root and containers next run is what keeps this safe.
func RelocateByDate(dst Destination, items []Relocation, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}

	groups := make(map[string][]string)
	for _, it := range items {
		groups[it.DateISO] = append(groups[it.DateISO], it.Name)
	}
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	moved := 0
	for _, date := range dates {
		if err := dst.EnsureContainer(date); err != nil {
			logger.Error("relocate.container_failed", "date", date, "error", err)
			continue
		}
		for _, name := range groups[date] {
			if err := dst.MoveToContainer(name, date); err != nil {
				logger.Warn("relocate.move_failed", "name", name, "date", date, "error", err)
				continue
			}
			moved++
		}
	}

	if len(items) > 0 {
		logger.Info("relocate.done", "groups", len(groups), "moved", moved, "total", len(items))
	}
	return moved
}
