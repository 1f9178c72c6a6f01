package usecase

import "github.com/shopspring/decimal"

// WebhookInput is a validated webhook payload entering the intake path.
type WebhookInput struct {
	TransactionID      string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
}

// IngestResult reports the intake outcome. Duplicate covers both a gate hit
// and a store uniqueness conflict; callers answer both with success.
type IngestResult struct {
	Duplicate bool
}
