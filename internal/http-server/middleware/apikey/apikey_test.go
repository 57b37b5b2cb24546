package apikey

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"manege-service/pkg/response"

	"github.com/google/uuid"
)

type mockResolver struct {
	memberID uuid.UUID
	err      error

	gotKey string
}

func (m *mockResolver) GetMemberIDByAPIKey(ctx context.Context, key string) (uuid.UUID, error) {
	m.gotKey = key
	if m.err != nil {
		return uuid.Nil, m.err
	}
	return m.memberID, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_ResolvesMember(t *testing.T) {
	memberID := uuid.New()
	resolver := &mockResolver{memberID: memberID}

	var gotMemberID uuid.UUID
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMemberID, gotOK = MemberID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)
	req.Header.Set(Header, "mdh_live_abc123")

	rec := httptest.NewRecorder()
	New(discardLogger(), resolver)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusOK)
	}
	if resolver.gotKey != "mdh_live_abc123" {
		t.Errorf("resolver got key %q", resolver.gotKey)
	}
	if !gotOK || gotMemberID != memberID {
		t.Errorf("context member = %s ok=%v, want %s", gotMemberID, gotOK, memberID)
	}
}

func TestNew_MissingKey(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)

	rec := httptest.NewRecorder()
	New(discardLogger(), &mockResolver{})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("handler ran without an api key")
	}
}

func TestNew_RejectedKey(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)
	req.Header.Set(Header, "expired-key")

	rec := httptest.NewRecorder()
	New(discardLogger(), &mockResolver{err: response.ErrNotAuthenticated})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("handler ran with a rejected api key")
	}
}
