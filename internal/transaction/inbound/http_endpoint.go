package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

// Webhook accepts a transaction notification. Schema problems are the only
// caller-visible failures; once the payload is valid the answer is 202.
func (h *HTTPEndpoint) Webhook(ctx context.Context, r *http.Request) (any, error) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	input, err := validateWebhook(req)
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Ingest(ctx, input)
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		return WebhookResponse{Message: "Transaction already exists"}, nil
	}

	return WebhookResponse{Message: "Transaction received"}, nil
}

// Lookup reads a transaction's current state. It always answers 200; absence
// and bad input are messages in the body, not transport errors.
func (h *HTTPEndpoint) Lookup(ctx context.Context, r *http.Request) (any, error) {
	raw := pkgrouter.GetParam(ctx, "transaction_id")

	transactionID := strings.TrimSpace(raw)
	if transactionID == "" {
		return LookupMessage{Message: "Invalid transaction_id", TransactionID: raw}, nil
	}

	tx, err := h.uc.Status(ctx, transactionID)
	if err != nil {
		if errors.Is(err, pkgerror.ErrNotFound) {
			return LookupMessage{Message: "Transaction not found", TransactionID: transactionID}, nil
		}

		slog.ErrorContext(ctx, "failed to read transaction status",
			"transaction_id", transactionID, "error", err)
		return LookupMessage{Message: "Internal server error", TransactionID: transactionID}, nil
	}

	return []TransactionResponse{toHTTPTransaction(tx)}, nil
}

func validateWebhook(req WebhookRequest) (usecase.WebhookInput, error) {
	if strings.TrimSpace(req.TransactionID) == "" {
		return usecase.WebhookInput{}, pkgerror.NewInvalidInput(errors.New("transaction_id is required"))
	}
	if req.SourceAccount == "" {
		return usecase.WebhookInput{}, pkgerror.NewInvalidInput(errors.New("source_account is required"))
	}
	if req.DestinationAccount == "" {
		return usecase.WebhookInput{}, pkgerror.NewInvalidInput(errors.New("destination_account is required"))
	}
	if req.Amount == nil {
		return usecase.WebhookInput{}, pkgerror.NewInvalidInput(errors.New("amount is required"))
	}
	if req.Currency == "" {
		return usecase.WebhookInput{}, pkgerror.NewInvalidInput(errors.New("currency is required"))
	}

	return usecase.WebhookInput{
		TransactionID:      strings.TrimSpace(req.TransactionID),
		SourceAccount:      req.SourceAccount,
		DestinationAccount: req.DestinationAccount,
		Amount:             *req.Amount,
		Currency:           req.Currency,
	}, nil
}
