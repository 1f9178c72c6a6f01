package inbound

import (
	"context"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

type uc interface {
	Ingest(ctx context.Context, in usecase.WebhookInput) (usecase.IngestResult, error)
	Status(ctx context.Context, transactionID string) (entity.Transaction, error)
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/v1/webhooks/transactions", end.Webhook)
	r.GET("/v1/transactions/:transaction_id", end.Lookup)
}
