package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dpereira/closings-tracker/internal/common"
)

// dateContainer matches the date-named containers relocation creates.
var dateContainer = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ArtifactCache is the in-memory set of destination filenames, rebuilt
// by a full scan at the start of each run and read-only afterwards
// except for names added by this run's own creations. It is never
// persisted across runs.
type ArtifactCache struct {
	names map[string]struct{}
}

// ScanArtifacts walks the destination root plus one level of
// date-named containers with an explicit queue rather than recursion.
func ScanArtifacts(root string, logger *slog.Logger) (*ArtifactCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &ArtifactCache{names: make(map[string]struct{})}

	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) && dir == root {
				return c, nil
			}
			return nil, common.NewStorageError("scan", dir, err)
		}

		for _, e := range entries {
			if e.IsDir() {
				if dir == root && dateContainer.MatchString(e.Name()) {
					queue = append(queue, filepath.Join(dir, e.Name()))
				}
				continue
			}
			c.names[e.Name()] = struct{}{}
		}
	}

	logger.Debug("artifacts.scanned", "root", root, "names", len(c.names))
	return c, nil
}

// Contains reports whether a derived filename already exists anywhere
// under the destination.
func (c *ArtifactCache) Contains(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Add records a filename created by the current run so later documents
// in the same run see it without re-scanning.
func (c *ArtifactCache) Add(name string) {
	c.names[name] = struct{}{}
}

// Len returns the number of cached filenames.
func (c *ArtifactCache) Len() int { return len(c.names) }

// Names returns a snapshot of the cached filenames (diagnostics).
func (c *ArtifactCache) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	return out
}
