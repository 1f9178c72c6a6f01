package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessTask is the dispatch-queue message instructing a worker to settle a
// transaction. It carries the full payload, not just the identifier, so a
// worker can create the record itself when the intake write is not yet
// visible to it.
type ProcessTask struct {
	TaskID             string          `json:"task_id"`
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// Transaction builds the record a worker inserts when it arrives before the
// intake write became visible.
func (t ProcessTask) Transaction(createdAt time.Time) Transaction {
	return Transaction{
		TransactionID:      t.TransactionID,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             t.Amount,
		Currency:           t.Currency,
		Status:             StatusProcessing,
		CreatedAt:          createdAt,
	}
}
