// Package source enumerates pending closure documents. Two backings
// exist: a mail-like inbox of .eml files filtered by subject pattern
// and date range, and a file store filtered by extension.
package source

import (
	"context"

	"github.com/dpereira/closings-tracker/internal/entity"
)

// Source enumerates every pending document it can see. The pipeline's
// idempotency layer, not the source, decides what is actually new.
type Source interface {
	Fetch(ctx context.Context) ([]entity.Document, error)
}

// Multi concatenates several sources in order.
type Multi []Source

func (m Multi) Fetch(ctx context.Context) ([]entity.Document, error) {
	var out []entity.Document
	for _, s := range m {
		docs, err := s.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}
