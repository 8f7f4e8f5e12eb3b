package statement

import (
	"github.com/shopspring/decimal"
)

// Finalize recomputes TotalDebits and TotalCredits from the transaction
// list. Summation goes through decimal arithmetic so that a long statement
// does not accumulate binary floating-point drift in the currency totals.
//
// Finalize does not reconcile the totals against the opening and closing
// balances; that check belongs to the caller.
func Finalize(st *ParsedStatement) *ParsedStatement {
	debits := decimal.Zero
	credits := decimal.Zero

	for _, tx := range st.Transactions {
		debits = debits.Add(decimal.NewFromFloat(tx.DebitAmount))
		credits = credits.Add(decimal.NewFromFloat(tx.CreditAmount))
	}

	st.TotalDebits = debits.InexactFloat64()
	st.TotalCredits = credits.InexactFloat64()
	return st
}
