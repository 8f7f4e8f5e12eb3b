package statement

import (
	"testing"
	"time"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name        string
		txs         []*Transaction
		wantDebits  float64
		wantCredits float64
	}{
		{
			name:        "empty statement",
			txs:         nil,
			wantDebits:  0,
			wantCredits: 0,
		},
		{
			name: "mixed polarity",
			txs: []*Transaction{
				{DebitAmount: 10000},
				{CreditAmount: 500000},
				{DebitAmount: 2500.50},
			},
			wantDebits:  12500.50,
			wantCredits: 500000,
		},
		{
			name: "fractional amounts sum exactly",
			txs: []*Transaction{
				{DebitAmount: 0.1},
				{DebitAmount: 0.2},
			},
			wantDebits:  0.3,
			wantCredits: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Finalize(&ParsedStatement{Transactions: tt.txs})
			if st.TotalDebits != tt.wantDebits {
				t.Errorf("TotalDebits = %v, want %v", st.TotalDebits, tt.wantDebits)
			}
			if st.TotalCredits != tt.wantCredits {
				t.Errorf("TotalCredits = %v, want %v", st.TotalCredits, tt.wantCredits)
			}
		})
	}
}

func TestTransactionHelpers(t *testing.T) {
	credit := &Transaction{Date: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), CreditAmount: 150000}
	if !credit.IsCredit() {
		t.Error("IsCredit() = false for a credit transaction")
	}
	if credit.Amount() != 150000 {
		t.Errorf("Amount() = %v, want 150000", credit.Amount())
	}

	debit := &Transaction{DebitAmount: 75000}
	if debit.IsCredit() {
		t.Error("IsCredit() = true for a debit transaction")
	}
	if debit.Amount() != 75000 {
		t.Errorf("Amount() = %v, want 75000", debit.Amount())
	}
}
