package entity

import (
	"github.com/shopspring/decimal"

	"github.com/dpereira/closings-tracker/constants"
)

// Shift is the coarse time-of-day bucket a closure belongs to, derived
// from the closure hour against the configured cutoff.
type Shift string

const (
	ShiftMorning Shift = "Morning"
	ShiftEvening Shift = "Evening"
)

// FinancialRecord holds the fields extracted from one closure document.
// Monetary fields use decimal.NullDecimal so that "absent" and "zero"
// are never conflated: Valid=false means the label was not found in the
// document text.
type FinancialRecord struct {
	SourceName  string
	ClosureDate string // raw as found, DD/MM/YYYY
	ClosureTime string // HH:MM:SS
	Shift       Shift
	Branch      string

	OpeningCash     decimal.NullDecimal
	TotalSales      decimal.NullDecimal
	CashSales       decimal.NullDecimal
	CardSales       decimal.NullDecimal
	DigitalPayments decimal.NullDecimal
	ClosingCash     decimal.NullDecimal
	CashWithdrawal  decimal.NullDecimal
}

// FieldValue returns the monetary value for a field identifier.
func (r *FinancialRecord) FieldValue(f constants.Field) decimal.NullDecimal {
	switch f {
	case constants.FieldOpeningCash:
		return r.OpeningCash
	case constants.FieldTotalSales:
		return r.TotalSales
	case constants.FieldCashSales:
		return r.CashSales
	case constants.FieldCardSales:
		return r.CardSales
	case constants.FieldDigitalPayments:
		return r.DigitalPayments
	case constants.FieldClosingCash:
		return r.ClosingCash
	case constants.FieldCashWithdrawal:
		return r.CashWithdrawal
	}
	return decimal.NullDecimal{}
}

// SetFieldValue stores a monetary value under a field identifier.
func (r *FinancialRecord) SetFieldValue(f constants.Field, v decimal.NullDecimal) {
	switch f {
	case constants.FieldOpeningCash:
		r.OpeningCash = v
	case constants.FieldTotalSales:
		r.TotalSales = v
	case constants.FieldCashSales:
		r.CashSales = v
	case constants.FieldCardSales:
		r.CardSales = v
	case constants.FieldDigitalPayments:
		r.DigitalPayments = v
	case constants.FieldClosingCash:
		r.ClosingCash = v
	case constants.FieldCashWithdrawal:
		r.CashWithdrawal = v
	}
}
