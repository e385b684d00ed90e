package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm-interactions/internal/calls"
)

func TestHTTPDialer_PlaceCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/calls" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["from"] != "+331" || body["to"] != "+336" {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pbx-42","created_at":"2026-01-01T09:00:00Z"}`))
	}))
	defer srv.Close()

	d := NewHTTPDialer(srv.URL+"/", "secret", srv.Client())
	placed, err := d.PlaceCall(context.Background(), calls.PlaceCallRequest{From: "+331", To: "+336"})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if placed.ID != "pbx-42" || placed.CreatedAt.IsZero() {
		t.Fatalf("unexpected result %+v", placed)
	}
}

func TestHTTPDialer_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "trunk down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPDialer(srv.URL, "", srv.Client()).PlaceCall(context.Background(), calls.PlaceCallRequest{From: "a", To: "b"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSandboxDialer(t *testing.T) {
	d := NewSandboxDialer()
	placed, err := d.PlaceCall(context.Background(), calls.PlaceCallRequest{From: "a", To: "b"})
	if err != nil || !strings.HasPrefix(placed.ID, "sandbox-") {
		t.Fatalf("unexpected %+v err=%v", placed, err)
	}
	d.Fail = errors.New("down")
	if _, err := d.PlaceCall(context.Background(), calls.PlaceCallRequest{}); err == nil {
		t.Fatalf("expected configured failure")
	}
}
