package httpclient

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geodov/godov/pkg/doverr"
)

func TestSession_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "godov/test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "<ok/>")
	}))
	defer srv.Close()

	s := New(Options{Retries: 3, Backoff: time.Millisecond, UserAgent: "godov/test"})
	body, err := s.Get(t.Context(), "xml", srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "<ok/>" || calls.Load() != 3 {
		t.Fatalf("body=%q calls=%d", body, calls.Load())
	}
}

func TestSession_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	s := New(Options{Retries: 3, Backoff: time.Millisecond})
	_, err := s.Get(t.Context(), "xml", srv.URL+"/data/boring/x", nil)
	if !errors.Is(err, doverr.ErrRemoteFetch) {
		t.Fatalf("want ErrRemoteFetch, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("want 404 StatusError in chain, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestSession_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Options{Retries: 2, Backoff: time.Millisecond})
	_, err := s.Post(t.Context(), "wfs", srv.URL, "text/xml", []byte("<q/>"))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 StatusError, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestSession_PostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "text/xml" || string(b) != "<q/>" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, "done")
	}))
	defer srv.Close()

	out, err := New(Options{}).Post(t.Context(), "wfs", srv.URL, "text/xml", []byte("<q/>"))
	if err != nil || string(out) != "done" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}
