package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

// MarkResult is the outcome of a terminal-state commit.
type MarkResult int

const (
	MarkUpdated          MarkResult = iota // the row transitioned to PROCESSED
	MarkAlreadyProcessed                   // another delivery committed first; not an error
	MarkNotFound                           // no row for the identifier
)

// Store is the durable transaction record keeper.
//
// CreateIfAbsent returns the stored row and whether this call inserted it; a
// uniqueness conflict is the second outcome, never an error. MarkProcessed
// re-reads the row under its row-level lock inside a short transaction and
// commits the single allowed mutation; it must be idempotent.
type Store interface {
	CreateIfAbsent(ctx context.Context, tx entity.Transaction) (entity.Transaction, bool, error)
	Find(ctx context.Context, transactionID string) (entity.Transaction, error)
	MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (MarkResult, error)
}

// Gate answers whether an identifier was already admitted within the dedup
// window. The check-and-set must be a single atomic operation.
type Gate interface {
	Admit(ctx context.Context, transactionID string) (bool, error)
}

// Queue carries processing instructions from intake to the workers with
// at-least-once delivery.
type Queue interface {
	Enqueue(ctx context.Context, task entity.ProcessTask) error
}

// Settler performs the slow external effect (the payment rail call). It is
// invoked without any row lock held and may run more than once per
// transaction; only the stored state is protected against duplication.
type Settler interface {
	Settle(ctx context.Context, tx entity.Transaction) error
}

type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store   Store
	Gate    Gate
	Queue   Queue
	Settler Settler
	Runner  Runner
	Clock   Clock
	ID      pkguid.StringID
	RootCtx context.Context
}

type Usecase struct {
	store   Store
	gate    Gate
	queue   Queue
	settler Settler
	runner  Runner
	clock   Clock
	id      pkguid.StringID
	rootCtx context.Context
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Usecase{
		store:   dep.Store,
		gate:    dep.Gate,
		queue:   dep.Queue,
		settler: dep.Settler,
		runner:  dep.Runner,
		clock:   clock,
		id:      dep.ID,
		rootCtx: root,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Ingest admits a webhook, persists the transaction once, and hands it to the
// dispatch queue. Duplicates at either the gate or the store are reported as
// such, not as errors. Infrastructure failures past validation never reach
// the caller: availability on the intake path wins over strict delivery, and
// the failure is logged for out-of-band alerting instead.
func (u *Usecase) Ingest(ctx context.Context, in WebhookInput) (IngestResult, error) {
	if u.store == nil || u.gate == nil || u.queue == nil || u.runner == nil || u.id == nil {
		return IngestResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	admitted, err := u.gate.Admit(ctx, in.TransactionID)
	if err != nil {
		// The gate is an optimization in front of the store's uniqueness
		// constraint; when it is unreachable we proceed and let the
		// constraint catch duplicates.
		slog.WarnContext(ctx, "idempotency gate unavailable, relying on store constraint",
			"transaction_id", in.TransactionID, "error", err)
		admitted = true
	}
	if !admitted {
		return IngestResult{Duplicate: true}, nil
	}

	record := entity.Transaction{
		TransactionID:      in.TransactionID,
		SourceAccount:      in.SourceAccount,
		DestinationAccount: in.DestinationAccount,
		Amount:             in.Amount,
		Currency:           in.Currency,
		Status:             entity.StatusProcessing,
		CreatedAt:          u.clock.Now().UTC(),
	}

	stored, inserted, err := u.store.CreateIfAbsent(ctx, record)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist transaction on intake",
			"transaction_id", in.TransactionID, "error", err)
		return IngestResult{}, nil
	}
	if !inserted {
		return IngestResult{Duplicate: true}, nil
	}

	task := entity.ProcessTask{
		TaskID:             u.id.Generate(),
		TransactionID:      stored.TransactionID,
		SourceAccount:      stored.SourceAccount,
		DestinationAccount: stored.DestinationAccount,
		Amount:             stored.Amount,
		Currency:           stored.Currency,
	}

	// Enqueue after the response path, the way the original intake responds
	// first and dispatches in the background.
	u.runner.Go(u.rootCtx, func(ctx context.Context) error {
		if err := u.queue.Enqueue(ctx, task); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue transaction for processing",
				"task_id", task.TaskID, "transaction_id", task.TransactionID, "error", err)
		}
		return nil
	})

	return IngestResult{}, nil
}

// Status reads the current representation of a transaction.
func (u *Usecase) Status(ctx context.Context, transactionID string) (entity.Transaction, error) {
	tx, err := u.store.Find(ctx, transactionID)
	if err != nil {
		if errors.Is(err, pkgerror.ErrNotFound) {
			return entity.Transaction{}, pkgerror.NewNotFound("Transaction not found")
		}
		return entity.Transaction{}, normalizeErr(err)
	}

	return tx, nil
}

// Process runs one delivery of a dispatch task through the settlement state
// machine. Deliveries are at-least-once and may run concurrently for the same
// identifier, so every step tolerates a rerun:
//
//  1. Ensure the record exists (the intake write may not be visible yet) and
//     skip immediately when it is already PROCESSED.
//  2. Perform the slow external effect without holding any lock.
//  3. Re-check under the row lock and commit the terminal transition; a
//     concurrent delivery winning the race is a no-op here, not an error.
//
// A returned error means the whole task should be retried from the top.
func (u *Usecase) Process(ctx context.Context, task entity.ProcessTask) error {
	record, inserted, err := u.store.CreateIfAbsent(ctx, task.Transaction(u.clock.Now().UTC()))
	if err != nil {
		return normalizeErr(err)
	}
	if inserted {
		slog.InfoContext(ctx, "transaction record created by worker",
			"task_id", task.TaskID, "transaction_id", task.TransactionID)
	}
	if record.Processed() {
		slog.InfoContext(ctx, "transaction already processed, skipping",
			"task_id", task.TaskID, "transaction_id", task.TransactionID)
		return nil
	}

	if err := u.settler.Settle(ctx, record); err != nil {
		return normalizeErr(err)
	}

	result, err := u.store.MarkProcessed(ctx, task.TransactionID, u.clock.Now().UTC())
	if err != nil {
		return normalizeErr(err)
	}

	switch result {
	case MarkAlreadyProcessed:
		slog.InfoContext(ctx, "concurrent delivery already committed",
			"task_id", task.TaskID, "transaction_id", task.TransactionID)
	case MarkNotFound:
		// The record was created in step 1; its absence now is a store
		// anomaly worth retrying.
		return pkgerror.NewServer(errors.New("transaction disappeared before commit"))
	}

	return nil
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
