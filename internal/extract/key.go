package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
)

const (
	isoDate   = "2006-01-02"
	brDate    = "02/01/2006"
	idStamp   = "20060102T150405Z"
	idMaxLen  = 40
	keySep    = "|"
	namePrefx = "Fechamento"
)

// NormalizeDate canonicalizes a date string to YYYY-MM-DD. It accepts
// DD/MM/YYYY and YYYY-MM-DD input so that a composite key is identical
// regardless of which form the date arrived in.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(brDate, s); err == nil {
		return t.Format(isoDate), nil
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t.Format(isoDate), nil
	}
	return "", common.NewAppError("KEY_ERROR", fmt.Sprintf("unrecognized date %q", raw), common.ErrInvalidInput)
}

// NormalizeDateValue canonicalizes a structured date value.
func NormalizeDateValue(t time.Time) string {
	return t.Format(isoDate)
}

// CompositeKey builds the uniform lookup key used for index lookups,
// ledger row matching and diagnostics.
func CompositeKey(dateISO string, shift entity.Shift, branch string) string {
	return dateISO + keySep + string(shift) + keySep + strings.TrimSpace(branch)
}

// RecordKey derives the composite key of an extracted record.
func RecordKey(rec *entity.FinancialRecord) (string, error) {
	d, err := NormalizeDate(rec.ClosureDate)
	if err != nil {
		return "", err
	}
	return CompositeKey(d, rec.Shift, rec.Branch), nil
}

// ArtifactName derives the deterministic destination filename for a
// record's artifact, e.g. "Fechamento_2025-07-15_Morning_Centro.txt".
func ArtifactName(rec *entity.FinancialRecord, ext string) (string, error) {
	d, err := NormalizeDate(rec.ClosureDate)
	if err != nil {
		return "", err
	}
	branch := sanitizeToken(rec.Branch)
	if branch == "" {
		branch = "sem-filial"
	}
	if ext == "" {
		ext = "txt"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", namePrefx, d, rec.Shift, branch, ext), nil
}

// ItemID derives the logical item identifier from the immutable source
// timestamp and a sanitized, length-bounded form of the label. Labels
// differing only in surrounding or repeated whitespace collide to the
// same identifier; that is accepted, not a defect.
func ItemID(receivedAt time.Time, label string) string {
	return receivedAt.UTC().Format(idStamp) + "_" + sanitizeLabel(label, idMaxLen)
}

// DayPrefix is the identifier prefix shared by every item received on
// the given day; the maintenance rewrite matches on it.
func DayPrefix(day time.Time) string {
	return day.UTC().Format("20060102")
}

func sanitizeLabel(s string, max int) string {
	joined := strings.Join(strings.Fields(strings.ToLower(s)), "_")
	var b strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// sanitizeToken makes a branch name safe for a filename.
func sanitizeToken(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	var parts []string
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			switch {
			case r == '/', r == '\\', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			default:
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "-")
}
