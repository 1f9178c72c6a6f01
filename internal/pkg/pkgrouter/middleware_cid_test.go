package pkgrouter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkglog"
)

type fixedGenerator struct{ id string }

func (g fixedGenerator) Generate() string { return g.id }

func TestCorrelationIDFromHeader(t *testing.T) {
	var seen string
	h := middlewareCorrelationID(fixedGenerator{id: "generated"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = pkglog.GetCorrelationID(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "from-header")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "from-header" {
		t.Fatalf("expected header cid, got %q", seen)
	}
	if got := rec.Header().Get(HeaderCorrelationID); got != "from-header" {
		t.Fatalf("expected cid echoed in response, got %q", got)
	}
}

func TestCorrelationIDGeneratedWhenAbsent(t *testing.T) {
	var seen string
	h := middlewareCorrelationID(fixedGenerator{id: "generated"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = pkglog.GetCorrelationID(r.Context())
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen != "generated" {
		t.Fatalf("expected generated cid, got %q", seen)
	}
}

func TestNormalizeCID(t *testing.T) {
	if got := normalizeCID("  abc  "); got != "abc" {
		t.Fatalf("expected trimmed cid, got %q", got)
	}
	if got := normalizeCID("bad\r\nvalue"); got != "" {
		t.Fatalf("expected rejection of control chars, got %q", got)
	}
	if got := normalizeCID(strings.Repeat("x", 200)); len(got) != 128 {
		t.Fatalf("expected cid capped at 128, got %d", len(got))
	}
}
