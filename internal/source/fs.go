package source

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dslipak/pdf"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
)

// FSSource reads closure reports from a directory, accepting the
// allowed extensions (.txt, .pdf). PDF text is pulled with a plain
// text-search extraction; no layout analysis.
type FSSource struct {
	Dir    string
	logger *slog.Logger
}

func NewFSSource(dir string, logger *slog.Logger) *FSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSSource{Dir: dir, logger: logger}
}

func (s *FSSource) Fetch(ctx context.Context) ([]entity.Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, common.NewStorageError("list", s.Dir, err)
	}

	var docs []entity.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(entry.Name()))
		if !constants.AllowedExt(ext) {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		doc, err := s.readDocument(path, entry.Name(), ext)
		if err != nil {
			// A single unreadable file does not abort enumeration.
			s.logger.Warn("source.fs.read_failed", "path", path, "error", err)
			continue
		}
		docs = append(docs, doc)
	}

	s.logger.Debug("source.fs.fetched", "dir", s.Dir, "documents", len(docs))
	return docs, nil
}

func (s *FSSource) readDocument(path, name, ext string) (entity.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entity.Document{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return entity.Document{}, err
	}

	text := string(raw)
	if ext == "pdf" {
		text, err = pdfText(path)
		if err != nil {
			return entity.Document{}, err
		}
	}

	base := name[:len(name)-len(filepath.Ext(name))]
	return entity.Document{
		Name:       name,
		Label:      base,
		Ext:        ext,
		Text:       text,
		Raw:        raw,
		ReceivedAt: info.ModTime(),
	}, nil
}

func pdfText(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
