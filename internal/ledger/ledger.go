// Package ledger applies extracted records to the XLSX ledger. The
// write policy is fill-only: a populated cell is never overwritten, and
// rows are matched, never created.
package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/entity"
	"github.com/dpereira/closings-tracker/internal/extract"
)

// highlight marks rows that received at least one write this pass.
const highlightColor = "FFF2CC"

// MergeWriter merges FinancialRecords into an existing spreadsheet.
type MergeWriter struct {
	path   string
	sheet  string
	logger *slog.Logger
}

func NewMergeWriter(path, sheet string, logger *slog.Logger) *MergeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeWriter{path: path, sheet: sheet, logger: logger}
}

// MergeReport summarizes one merge pass.
type MergeReport struct {
	Records       int
	Matched       int
	SkippedNoRow  int
	AppliedWrites int
	RowsTouched   int
}

type cellWrite struct {
	col   int
	value float64
}

// Apply scans the full data range once, matches each record by its
// composite key and fills only empty/zero cells. Zero applied writes is
// reported as "no updates needed", not an error.
func (w *MergeWriter) Apply(records []*entity.FinancialRecord) (*MergeReport, error) {
	report := &MergeReport{Records: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, common.NewStorageError("open", w.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, common.NewStorageError("read", w.sheet, err)
	}
	if len(rows) == 0 {
		return nil, common.NewAppError("LEDGER_ERROR", "ledger sheet has no header row", common.ErrInvalidInput)
	}

	cols := headerColumns(rows[0])
	for _, required := range []string{constants.ColumnDate, constants.ColumnShift, constants.ColumnBranch} {
		if _, ok := cols[required]; !ok {
			return nil, common.NewAppError("LEDGER_ERROR",
				fmt.Sprintf("ledger header misses column %q", required), common.ErrInvalidInput)
		}
	}

	rowByKey := w.indexRows(rows, cols)

	// Collect writes first, then apply grouped by row.
	writes := make(map[int][]cellWrite)
	for _, rec := range records {
		key, err := extract.RecordKey(rec)
		if err != nil {
			w.logger.Warn("ledger.merge.bad_key", "source", rec.SourceName, "error", err)
			continue
		}
		rowNum, ok := rowByKey[key]
		if !ok {
			// No row creation by design: log and skip.
			w.logger.Info("ledger.merge.no_row", "key", key, "source", rec.SourceName)
			report.SkippedNoRow++
			continue
		}
		report.Matched++

		for _, field := range constants.MonetaryFields {
			v := rec.FieldValue(field)
			if !v.Valid {
				continue
			}
			col, ok := cols[constants.LedgerColumns[field]]
			if !ok {
				continue
			}
			if !cellEmptyOrZero(cellAt(rows[rowNum-1], col)) {
				continue
			}
			writes[rowNum] = append(writes[rowNum], cellWrite{col: col, value: v.Decimal.InexactFloat64()})
		}
	}

	if len(writes) == 0 {
		w.logger.Info("ledger.merge.noop", "records", report.Records)
		return report, nil
	}

	lastCol := len(rows[0])
	styleID, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{highlightColor}, Pattern: 1},
	})
	if err != nil {
		return nil, common.NewStorageError("style", w.path, err)
	}

	rowNums := make([]int, 0, len(writes))
	for n := range writes {
		rowNums = append(rowNums, n)
	}
	sort.Ints(rowNums)

	for _, rowNum := range rowNums {
		for _, cw := range writes[rowNum] {
			cell, _ := excelize.CoordinatesToCellName(cw.col, rowNum)
			if err := f.SetCellValue(w.sheet, cell, cw.value); err != nil {
				return nil, common.NewStorageError("write", cell, err)
			}
			report.AppliedWrites++
		}

		first, _ := excelize.CoordinatesToCellName(1, rowNum)
		last, _ := excelize.CoordinatesToCellName(lastCol, rowNum)
		if err := f.SetCellStyle(w.sheet, first, last, styleID); err != nil {
			return nil, common.NewStorageError("style", first, err)
		}
		report.RowsTouched++
	}

	if err := f.Save(); err != nil {
		return nil, common.NewStorageError("save", w.path, err)
	}

	w.logger.Info("ledger.merge.ok",
		"records", report.Records,
		"matched", report.Matched,
		"applied", report.AppliedWrites,
		"rows", report.RowsTouched,
	)
	return report, nil
}

// indexRows builds the composite-key index over the data range. Rows
// with unparseable dates are skipped; the first row wins a duplicate
// key.
func (w *MergeWriter) indexRows(rows [][]string, cols map[string]int) map[string]int {
	dateCol := cols[constants.ColumnDate]
	shiftCol := cols[constants.ColumnShift]
	branchCol := cols[constants.ColumnBranch]

	idx := make(map[string]int)
	for i := 1; i < len(rows); i++ {
		rowNum := i + 1
		date, err := extract.NormalizeDate(cellAt(rows[i], dateCol))
		if err != nil {
			continue
		}
		shift := entity.Shift(strings.TrimSpace(cellAt(rows[i], shiftCol)))
		branch := strings.TrimSpace(cellAt(rows[i], branchCol))
		key := extract.CompositeKey(date, shift, branch)
		if _, ok := idx[key]; !ok {
			idx[key] = rowNum
		}
	}
	return idx
}

func headerColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name != "" {
			cols[name] = i + 1
		}
	}
	return cols
}

// cellAt tolerates the short rows excelize returns when trailing cells
// are empty.
func cellAt(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

// cellEmptyOrZero implements the fill-only predicate: empty, blank or
// numerically zero cells may be filled, anything else is populated.
func cellEmptyOrZero(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	n := extract.NormalizeAmount(trimmed)
	return n.Valid && n.Decimal.IsZero()
}
