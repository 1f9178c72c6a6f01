package inbound

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
	"github.com/shopspring/decimal"
)

// timeLayout renders UTC instants with microsecond precision and a "Z"
// suffix. Every timestamp on the wire uses this one form.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// WebhookRequest is the inbound transaction notification. Amount is a
// pointer so a missing field is distinguishable from zero.
type WebhookRequest struct {
	TransactionID      string           `json:"transaction_id"`
	SourceAccount      string           `json:"source_account"`
	DestinationAccount string           `json:"destination_account"`
	Amount             *decimal.Decimal `json:"amount"`
	Currency           string           `json:"currency"`
}

// WebhookResponse acknowledges an intake. Both the new-admission and the
// duplicate outcome use it; duplicates are success, not errors.
type WebhookResponse struct {
	Message string `json:"message"`
}

func (WebhookResponse) StatusCode() int {
	return http.StatusAccepted
}

// TransactionResponse is the caller-facing representation of a stored
// transaction. Amount is emitted as a JSON number and timestamps in
// timeLayout; status is the plain string form of the lifecycle state.
type TransactionResponse struct {
	TransactionID      string       `json:"transaction_id"`
	SourceAccount      string       `json:"source_account"`
	DestinationAccount string       `json:"destination_account"`
	Amount             *json.Number `json:"amount"`
	Currency           string       `json:"currency"`
	Status             string       `json:"status"`
	CreatedAt          *string      `json:"created_at"`
	ProcessedAt        *string      `json:"processed_at"`
}

// LookupMessage reports lookup problems inside a successful response; the
// status endpoint never fails at the protocol level.
type LookupMessage struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

func toHTTPTransaction(tx entity.Transaction) TransactionResponse {
	amount := json.Number(tx.Amount.String())

	resp := TransactionResponse{
		TransactionID:      tx.TransactionID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		Amount:             &amount,
		Currency:           tx.Currency,
		Status:             tx.Status.String(),
		CreatedAt:          formatTime(tx.CreatedAt),
		ProcessedAt:        nil,
	}

	if tx.ProcessedAt != nil {
		resp.ProcessedAt = formatTime(*tx.ProcessedAt)
	}

	return resp
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}

	s := t.UTC().Format(timeLayout)
	return &s
}
