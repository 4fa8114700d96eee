package source

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
)

// MailboxSource reads .eml files from an inbox directory, keeping the
// messages whose subject matches the configured pattern and whose Date
// header falls inside the window. The message date is the item's
// immutable timestamp; the subject is its label.
type MailboxSource struct {
	Dir     string
	Subject *regexp.Regexp
	From    time.Time // zero means unbounded
	To      time.Time // zero means unbounded
	logger  *slog.Logger
}

func NewMailbox(dir, subjectPattern string, from, to time.Time, logger *slog.Logger) (*MailboxSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	re, err := regexp.Compile(subjectPattern)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid subject pattern", err)
	}
	return &MailboxSource{Dir: dir, Subject: re, From: from, To: to, logger: logger}, nil
}

func (s *MailboxSource) Fetch(ctx context.Context) ([]entity.Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, common.NewStorageError("list", s.Dir, err)
	}

	var docs []entity.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || constants.NormalizeExt(filepath.Ext(entry.Name())) != constants.MailExtension {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		doc, ok, err := s.readMessage(path, entry.Name())
		if err != nil {
			s.logger.Warn("source.mail.read_failed", "path", path, "error", err)
			continue
		}
		if ok {
			docs = append(docs, doc)
		}
	}

	s.logger.Debug("source.mail.fetched", "dir", s.Dir, "documents", len(docs))
	return docs, nil
}

func (s *MailboxSource) readMessage(path, name string) (entity.Document, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return entity.Document{}, false, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(bufio.NewReader(f))
	if err != nil {
		return entity.Document{}, false, err
	}

	subject := msg.Header.Get("Subject")
	if !s.Subject.MatchString(subject) {
		return entity.Document{}, false, nil
	}
	date, err := msg.Header.Date()
	if err != nil {
		return entity.Document{}, false, err
	}
	if !s.From.IsZero() && date.Before(s.From) {
		return entity.Document{}, false, nil
	}
	if !s.To.IsZero() && date.After(s.To) {
		return entity.Document{}, false, nil
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return entity.Document{}, false, err
	}

	return entity.Document{
		Name:       name,
		Label:      subject,
		Ext:        "txt", // the artifact materializes the body as text
		Text:       string(body),
		Raw:        body,
		ReceivedAt: date,
	}, true, nil
}
