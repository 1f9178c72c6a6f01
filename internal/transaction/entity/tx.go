package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the durable record of a single webhook-notified transfer.
//
// TransactionID is the caller-supplied correlation key and is unique across
// the store; ID is the surrogate row key. ProcessedAt is nil exactly while
// Status is StatusProcessing.
type Transaction struct {
	ID                 int64
	TransactionID      string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	Status             Status
	CreatedAt          time.Time
	ProcessedAt        *time.Time
}

// Processed reports whether the transaction reached its terminal state.
func (t Transaction) Processed() bool {
	return t.Status == StatusProcessed
}
