// Package store is the destination side of the pipeline: a
// hierarchical container holding created artifacts at its root and
// date-named containers the relocation pass moves them into.
package store

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dpereira/closings-tracker/internal/common"
)

// Destination is the hierarchical artifact container.
type Destination interface {
	// EnsureContainer finds or creates a child container by name.
	EnsureContainer(name string) error
	// CreateFile writes a new root-level file in one atomic step.
	CreateFile(name string, data []byte) error
	// MoveToContainer moves a root-level file into a child container.
	MoveToContainer(name, container string) error
	// ListFiles lists file names in a container ("" is the root).
	ListFiles(container string) ([]string, error)
	// Trash soft-deletes a root-level file or container.
	Trash(name string) error
}

const trashContainer = ".trash"

// FSDestination implements Destination on a local directory tree.
type FSDestination struct {
	root   string
	logger *slog.Logger
}

func NewFSDestination(root string, logger *slog.Logger) (*FSDestination, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, common.NewStorageError("create", root, err)
	}
	return &FSDestination{root: root, logger: logger}, nil
}

func (d *FSDestination) EnsureContainer(name string) error {
	path := filepath.Join(d.root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return common.NewStorageError("create container", path, err)
	}
	return nil
}

// CreateFile writes through a temp file and renames, so a crash never
// leaves a half-written artifact under the final name.
func (d *FSDestination) CreateFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(d.root, ".creating-*")
	if err != nil {
		return common.NewStorageError("create", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return common.NewStorageError("write", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return common.NewStorageError("write", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.root, name)); err != nil {
		_ = os.Remove(tmpName)
		return common.NewStorageError("create", name, err)
	}

	d.logger.Debug("dest.created", "name", name, "bytes", len(data))
	return nil
}

func (d *FSDestination) MoveToContainer(name, container string) error {
	src := filepath.Join(d.root, name)
	dst := filepath.Join(d.root, container, name)
	if err := os.Rename(src, dst); err != nil {
		return common.NewStorageError("move", name, err)
	}
	return nil
}

func (d *FSDestination) ListFiles(container string) ([]string, error) {
	dir := filepath.Join(d.root, container)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewStorageError("list", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (d *FSDestination) Trash(name string) error {
	if err := d.EnsureContainer(trashContainer); err != nil {
		return err
	}
	src := filepath.Join(d.root, name)
	dst := filepath.Join(d.root, trashContainer, name)
	if err := os.Rename(src, dst); err != nil {
		return common.NewStorageError("trash", name, err)
	}
	d.logger.Info("dest.trashed", "name", name)
	return nil
}
