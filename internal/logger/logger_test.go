package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestContextWithLoggerReusesExisting(t *testing.T) {
	ctx, first := ContextWithLogger(context.Background())
	ctx2, second := ContextWithLogger(ctx)
	if first != second {
		t.Fatalf("expected the existing logger to be reused")
	}
	if RequestID(ctx) == "" || RequestID(ctx) != RequestID(ctx2) {
		t.Fatalf("expected a stable request id")
	}
}

func TestWithIdentityKeepsRequestID(t *testing.T) {
	ctx, _ := ContextWithLogger(context.Background())
	id := RequestID(ctx)
	ctx = WithIdentity(ctx, "user-1")
	if RequestID(ctx) != id {
		t.Fatalf("expected request id %s, got %s", id, RequestID(ctx))
	}
	if got := FromContext(ctx).Data[identityField]; got != "user-1" {
		t.Fatalf("expected identity user-1, got %v", got)
	}
}

func TestMiddlewareSetsRequestIDHeader(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected X-Request-ID %q, got %q", seen, rec.Header().Get("X-Request-ID"))
	}
}

func TestAccessLineCarriesIdentity(t *testing.T) {
	hook := test.NewGlobal()
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithIdentity(r.Context(), "teacher:user-1")
		FromContext(ctx).Info("inner")
		w.WriteHeader(http.StatusNoContent)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/courses/c1", nil))

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected inner and access lines, got %d", len(entries))
	}
	access := entries[1]
	if access.Message != "request" || access.Data[identityField] != "teacher:user-1" {
		t.Fatalf("expected access line with identity, got %q %v", access.Message, access.Data)
	}
	if access.Data["status"] != http.StatusNoContent || access.Data[requestIDField] != entries[0].Data[requestIDField] {
		t.Fatalf("unexpected access fields %v", access.Data)
	}

	hook.Reset()
	Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if _, ok := hook.LastEntry().Data[identityField]; ok {
		t.Fatalf("anonymous requests must not carry an identity")
	}
}
