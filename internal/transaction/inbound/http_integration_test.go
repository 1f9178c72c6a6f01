package inbound_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosettle/internal/transaction/dispatch"
	"github.com/shandysiswandi/gosettle/internal/transaction/gate"
	"github.com/shandysiswandi/gosettle/internal/transaction/inbound"
	"github.com/shandysiswandi/gosettle/internal/transaction/settlement"
	"github.com/shandysiswandi/gosettle/internal/transaction/store"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

// newTestServer wires the intake pipeline end to end with in-memory drivers
// and a near-instant settlement so tests can observe the full lifecycle.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sf, err := pkguid.NewSnowflake()
	if err != nil {
		t.Fatalf("NewSnowflake() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	storage := store.NewMemory(sf)
	bus := dispatch.NewBus(16)
	manager := pkgroutine.NewManager(8)

	uc := usecase.New(usecase.Dependency{
		Store:   storage,
		Gate:    gate.NewMemory(time.Hour),
		Queue:   bus,
		Settler: settlement.NewSimulated(20 * time.Millisecond),
		Runner:  manager,
		ID:      pkguid.NewUUID(),
		RootCtx: ctx,
	})

	consumer := dispatch.NewConsumer(bus, uc, dispatch.ConsumerConfig{
		Workers: 2,
		Policy:  dispatch.Policy{MaxRetries: 2, BaseBackoff: 5 * time.Millisecond},
	})
	consumer.Start()

	router := pkgrouter.NewRouter(pkguid.NewUUID())
	inbound.RegisterHTTPEndpoint(router, uc)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = consumer.Stop(stopCtx)
		cancel()
	})

	return srv
}

func postWebhook(t *testing.T, srv *httptest.Server, body string) (int, map[string]string) {
	t.Helper()

	resp, err := http.Post(srv.URL+"/v1/webhooks/transactions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode webhook response: %v", err)
	}

	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response from %s: %v", url, err)
	}

	return resp.StatusCode
}

const webhookBody = `{
	"transaction_id": "tx-abc-123",
	"source_account": "acc_debitor",
	"destination_account": "acc_creditor",
	"amount": 30.5,
	"currency": "PEN"
}`

func TestWebhookLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, body := postWebhook(t, srv, webhookBody)
	if code != http.StatusAccepted {
		t.Fatalf("first POST status = %d, want %d", code, http.StatusAccepted)
	}
	if body["message"] != "Transaction received" {
		t.Fatalf("first POST message = %q, want %q", body["message"], "Transaction received")
	}

	code, body = postWebhook(t, srv, webhookBody)
	if code != http.StatusAccepted {
		t.Fatalf("second POST status = %d, want %d", code, http.StatusAccepted)
	}
	if body["message"] != "Transaction already exists" {
		t.Fatalf("second POST message = %q, want %q", body["message"], "Transaction already exists")
	}

	// Poll until the worker commits the terminal state.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var list []map[string]any
		code := getJSON(t, srv.URL+"/v1/transactions/tx-abc-123", &list)
		if code != http.StatusOK {
			t.Fatalf("GET status = %d, want %d", code, http.StatusOK)
		}
		if len(list) != 1 {
			t.Fatalf("GET returned %d elements, want 1", len(list))
		}

		tx := list[0]
		if tx["status"] == "PROCESSED" {
			if tx["processed_at"] == nil {
				t.Fatal("processed transaction has null processed_at")
			}
			if tx["transaction_id"] != "tx-abc-123" {
				t.Fatalf("transaction_id = %v, want tx-abc-123", tx["transaction_id"])
			}
			if amount, ok := tx["amount"].(float64); !ok || amount != 30.5 {
				t.Fatalf("amount = %v, want 30.5 as a JSON number", tx["amount"])
			}
			return
		}
		if tx["status"] != "PROCESSING" {
			t.Fatalf("status = %v, want PROCESSING or PROCESSED", tx["status"])
		}

		if time.Now().After(deadline) {
			t.Fatal("transaction never reached PROCESSED")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLookupUnknownTransaction(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/v1/transactions/tx-missing", &body)
	if code != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", code, http.StatusOK)
	}
	if body["message"] != "Transaction not found" {
		t.Fatalf("message = %q, want %q", body["message"], "Transaction not found")
	}
	if body["transaction_id"] != "tx-missing" {
		t.Fatalf("transaction_id = %q, want %q", body["transaction_id"], "tx-missing")
	}
}

func TestLookupBlankTransactionID(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/v1/transactions/%20", &body)
	if code != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", code, http.StatusOK)
	}
	if body["message"] != "Invalid transaction_id" {
		t.Fatalf("message = %q, want %q", body["message"], "Invalid transaction_id")
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/webhooks/transactions", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/webhooks/transactions", "application/json",
		strings.NewReader(`{"transaction_id": "tx-1"}`))
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	if code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "HEALTHY" {
		t.Fatalf("status = %q, want HEALTHY", body["status"])
	}
	if body["current_time"] == "" {
		t.Fatal("current_time is empty")
	}
}
