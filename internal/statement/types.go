package statement

import (
	"time"
)

// Transaction represents one economic event reconstructed from a statement
// block. It is built once during parsing and never mutated afterwards;
// ownership passes to the aggregator and then to the persistence boundary.
type Transaction struct {
	// Date is the calendar date of the transaction. The statement prints
	// only DD/MM; the year comes from the detected period (or the injected
	// default when no period marker exists).
	Date time.Time `json:"date"`

	// Description is the full block text, all lines joined with newlines,
	// stored verbatim and untruncated.
	Description string `json:"description"`

	// Reference is a short alphanumeric code pulled heuristically from the
	// description (e.g. "0211/FTSCY/WS95051"). Empty if absent.
	Reference string `json:"reference,omitempty"`

	// BranchCode is reserved for layouts that print a branch column.
	// Always empty in this parser.
	BranchCode string `json:"branch_code,omitempty"`

	// Exactly one of DebitAmount/CreditAmount is nonzero.
	DebitAmount  float64 `json:"debit_amount"`
	CreditAmount float64 `json:"credit_amount"`

	// Balance is the running balance printed on the statement for this
	// line, or nil when the block carried no second qualifying amount.
	Balance *float64 `json:"balance,omitempty"`
}

// IsCredit reports whether the transaction moves money in.
func (t *Transaction) IsCredit() bool {
	return t.CreditAmount != 0
}

// Amount returns the transaction amount regardless of polarity.
func (t *Transaction) Amount() float64 {
	if t.CreditAmount != 0 {
		return t.CreditAmount
	}
	return t.DebitAmount
}

// ParsedStatement is the parse result for one document. One instance per
// parse invocation; immutable once returned.
type ParsedStatement struct {
	// Period is the human-readable month/year label from the PERIODE
	// marker, e.g. "JANUARI 2025". Empty if undetected.
	Period string `json:"period,omitempty"`

	// StartDate/EndDate are the first and last calendar day of the
	// detected month. They are computed even when Period detection fails,
	// falling back to January of the default year.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	OpeningBalance float64 `json:"opening_balance"`
	ClosingBalance float64 `json:"closing_balance"`

	// TotalDebits/TotalCredits are always recomputed from Transactions by
	// Finalize, never set independently.
	TotalDebits  float64 `json:"total_debits"`
	TotalCredits float64 `json:"total_credits"`

	// Transactions in document order. Never reordered.
	Transactions []*Transaction `json:"transactions"`
}
