package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"grdmonitor/internal/config"
)

func testMailClient(url string) *MailClient {
	return NewMailClient(config.MailConfig{
		BaseURL:        url,
		APIKey:         "secret",
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	})
}

func TestEnqueueAccepted(t *testing.T) {
	var gotKey string
	var gotPath string
	var gotReq enqueueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "queued": true, "message": "queued"})
	}))
	defer srv.Close()

	c := testMailClient(srv.URL)
	ok, detail := c.Enqueue([]string{"ops@example.com"}, "asunto", "cuerpo", "alarm_event")
	if !ok {
		t.Fatalf("Enqueue = false (%s), want accepted", detail)
	}
	if gotPath != "/send_async" {
		t.Errorf("path = %q, want /send_async", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("X-API-Key = %q, want secret", gotKey)
	}
	if gotReq.Subject != "asunto" || gotReq.MessageType != "alarm_event" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestEnqueueQueueRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "queued": false, "message": "queue full"})
	}))
	defer srv.Close()

	ok, detail := testMailClient(srv.URL).Enqueue(nil, "s", "b", "alarm_event")
	if ok {
		t.Fatal("Enqueue = true for a 202 that did not queue")
	}
	if detail != "queue full" {
		t.Errorf("detail = %q, want service message", detail)
	}
}

func TestEnqueueUnauthorizedIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ok, detail := testMailClient(srv.URL).Enqueue(nil, "s", "b", "alarm_event")
	if ok {
		t.Fatal("Enqueue = true on 401")
	}
	if detail != "unauthorized: check API key" {
		t.Errorf("detail = %q", detail)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server called %d times, want 1 (auth failures must not retry)", n)
	}
}

func TestEnqueueRetriesOverloadThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"detail": "busy"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "queued": true})
	}))
	defer srv.Close()

	ok, _ := testMailClient(srv.URL).Enqueue(nil, "s", "b", "alarm_event")
	if !ok {
		t.Fatal("Enqueue = false, want success after two 503s")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server called %d times, want 3", n)
	}
}

func TestEnqueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ok, _ := testMailClient(srv.URL).Enqueue(nil, "s", "b", "alarm_event")
	if ok {
		t.Fatal("Enqueue = true, want failure after exhausting retries")
	}
	// Initial attempt plus three retries.
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Errorf("server called %d times, want 4", n)
	}
}

func TestEnqueueNetworkErrorRetriesAndFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	ok, detail := testMailClient(srv.URL).Enqueue(nil, "s", "b", "alarm_event")
	if ok {
		t.Fatal("Enqueue = true against a dead server")
	}
	if detail == "" {
		t.Error("detail empty, want a network diagnostic")
	}
}
