package constants

// Field identifies one monetary field extracted from a closure document.
type Field string

// Stable values (used as anchor-config keys and for diagnostics).
const (
	FieldOpeningCash     Field = "opening_cash"
	FieldTotalSales      Field = "total_sales"
	FieldCashSales       Field = "cash_sales"
	FieldCardSales       Field = "card_sales"
	FieldDigitalPayments Field = "digital_payments"
	FieldClosingCash     Field = "closing_cash"
	FieldCashWithdrawal  Field = "cash_withdrawal"
)

// MonetaryFields lists every monetary field in extraction order.
// CashWithdrawal is last because it uses a proximity search rather than
// immediate label adjacency.
var MonetaryFields = []Field{
	FieldOpeningCash,
	FieldTotalSales,
	FieldCashSales,
	FieldCardSales,
	FieldDigitalPayments,
	FieldClosingCash,
	FieldCashWithdrawal,
}

// LedgerColumns maps each monetary field to its ledger header name.
var LedgerColumns = map[Field]string{
	FieldOpeningCash:     "Opening Cash",
	FieldTotalSales:      "Total Sales",
	FieldCashSales:       "Cash Sales",
	FieldCardSales:       "Card Payments",
	FieldDigitalPayments: "Digital Payments",
	FieldClosingCash:     "Closing Cash",
	FieldCashWithdrawal:  "Cash Withdrawal",
}

// Ledger key columns.
const (
	ColumnDate   = "Date"
	ColumnShift  = "Shift"
	ColumnBranch = "Branch"
)
