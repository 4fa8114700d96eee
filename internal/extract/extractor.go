// Package extract turns the plain text of one closure document into a
// typed FinancialRecord using a configurable labeled-field anchor set.
package extract

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
)

// amountPat matches locale-formatted amounts: #{1,3}(.###)*,##
const amountPat = `\d{1,3}(?:\.\d{3})*,\d{2}`

// Extractor runs anchored text searches over document text. It is
// stateless after construction and safe to reuse across documents.
type Extractor struct {
	anchors    common.Anchors
	cutoffHour int
	logger     *slog.Logger

	dateRe   *regexp.Regexp
	fieldRes map[constants.Field]*regexp.Regexp
	amountRe *regexp.Regexp
}

func New(anchors common.Anchors, cutoffHour int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Extractor{
		anchors:    anchors,
		cutoffHour: cutoffHour,
		logger:     logger,
		fieldRes:   make(map[constants.Field]*regexp.Regexp),
	}

	e.dateRe = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(anchors.DateLabel) +
		`\s*:?\s*(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2}:\d{2})`)
	// Optional currency symbol between the label and the number.
	for field, label := range anchors.Fields {
		e.fieldRes[field] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) +
			`\s*:?\s*(?:R\$)?\s*(` + amountPat + `)`)
	}
	e.amountRe = regexp.MustCompile(`-?\s*(?:R\$)?\s*` + amountPat)

	return e
}

// Extract parses one document. Only the closure date is mandatory: its
// absence fails the whole extraction; every other missing field leaves
// the record value absent rather than zero.
func (e *Extractor) Extract(doc *entity.Document) (*entity.FinancialRecord, error) {
	rec := &entity.FinancialRecord{SourceName: doc.Name}

	rec.Branch = e.findBranch(doc.Text)

	m := e.dateRe.FindStringSubmatch(doc.Text)
	if m == nil {
		return nil, common.NewExtractionError(doc.Name, "closure date pattern not found")
	}
	rec.ClosureDate = m[1]
	rec.ClosureTime = m[2]

	hour, err := strconv.Atoi(m[2][:2])
	if err != nil {
		return nil, common.NewExtractionError(doc.Name, "closure time is not parseable")
	}
	if hour < e.cutoffHour {
		rec.Shift = entity.ShiftMorning
	} else {
		rec.Shift = entity.ShiftEvening
	}

	for _, field := range constants.MonetaryFields {
		if field == constants.FieldCashWithdrawal {
			rec.CashWithdrawal = e.findWithdrawal(doc.Text)
			continue
		}
		re, ok := e.fieldRes[field]
		if !ok {
			continue
		}
		if fm := re.FindStringSubmatch(doc.Text); fm != nil {
			rec.SetFieldValue(field, NormalizeAmount(fm[1]))
		}
	}

	e.logger.Debug("extract.ok",
		"source", doc.Name,
		"date", rec.ClosureDate,
		"shift", rec.Shift,
		"branch", rec.Branch,
	)
	return rec, nil
}

// findBranch locates the first line carrying both the organizational
// marker and the branch marker; the branch is whatever follows the
// branch marker on that line. No match leaves the branch empty instead
// of failing the extraction.
func (e *Extractor) findBranch(text string) string {
	org := strings.ToLower(e.anchors.OrgMarker)
	marker := strings.ToLower(e.anchors.BranchMarker)

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, org) {
			continue
		}
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		return strings.TrimSpace(line[idx+len(marker):])
	}
	return ""
}

// findWithdrawal is the one proximity search: locate the anchor line,
// then take the first amount-shaped token (optionally negative) on the
// remainder of that line or within the configured window of subsequent
// lines.
func (e *Extractor) findWithdrawal(text string) decimal.NullDecimal {
	label := strings.ToLower(e.anchors.Withdrawal.Label)
	if label == "" {
		return decimal.NullDecimal{}
	}
	window := e.anchors.Withdrawal.Window
	if window <= 0 {
		window = 2
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		idx := strings.Index(lower, label)
		if idx < 0 {
			continue
		}
		if tok := e.amountRe.FindString(line[idx+len(label):]); tok != "" {
			return NormalizeAmount(tok)
		}
		for j := i + 1; j <= i+window && j < len(lines); j++ {
			if tok := e.amountRe.FindString(lines[j]); tok != "" {
				return NormalizeAmount(tok)
			}
		}
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{}
}
