package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bherrors "github.com/bhmob/bhlake/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProfileClient_FirstProfileSucceeds(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "<EV=105;LT=-19.9>")
	}))
	defer srv.Close()

	c := NewProfileClient(DefaultProfiles(), 5*time.Second, discardLogger())
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<EV=105;LT=-19.9>" {
		t.Errorf("body = %q", body)
	}
	if gotUA != DefaultProfiles()[0].UserAgent {
		t.Errorf("user agent = %q, want first profile's", gotUA)
	}
}

func TestProfileClient_RotatesOnRejection(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewProfileClient(DefaultProfiles(), 5*time.Second, discardLogger())
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q", body)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestProfileClient_AllProfilesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewProfileClient(DefaultProfiles(), 5*time.Second, discardLogger())
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, bherrors.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestProfilesByName(t *testing.T) {
	got := ProfilesByName([]string{"safari15_5", "chrome110"})
	if len(got) != 2 || got[0].Name != "safari15_5" || got[1].Name != "chrome110" {
		t.Errorf("unexpected selection: %+v", got)
	}

	// Unknown names fall back to the full default list.
	if got := ProfilesByName([]string{"netscape4"}); len(got) != len(DefaultProfiles()) {
		t.Errorf("unknown names should fall back to defaults, got %d profiles", len(got))
	}
	if got := ProfilesByName(nil); len(got) != len(DefaultProfiles()) {
		t.Errorf("empty selection should fall back to defaults, got %d profiles", len(got))
	}
}

func TestRetryClient_RecoversAfterFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewRetryClient(3, time.Millisecond, 5*time.Second, discardLogger())
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q", body)
	}
}

func TestRetryClient_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRetryClient(2, time.Millisecond, 5*time.Second, discardLogger())
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, bherrors.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}
