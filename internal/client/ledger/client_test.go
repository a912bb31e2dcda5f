package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAttest(t *testing.T) {
	var gotReq attestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/attestations" {
			t.Errorf("путь запроса: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(Attestation{
			TransactionID: "0xabc",
			ExplorerURL:   "https://explorer.example/tx/0xabc",
			Network:       "testnet",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, slog.Default())
	if !c.Enabled() {
		t.Fatal("клиент с baseURL должен быть включён")
	}

	att, err := c.Attest(context.Background(), "d1c627ff", "users/farmer/AP/Guntur/9876543210")
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if att.TransactionID != "0xabc" {
		t.Errorf("TransactionID = %q", att.TransactionID)
	}
	if gotReq.DocumentHash != "d1c627ff" {
		t.Errorf("document_hash = %q", gotReq.DocumentHash)
	}
}

func TestAttestNotConfigured(t *testing.T) {
	c := New("", 5*time.Second, slog.Default())
	if c.Enabled() {
		t.Error("клиент без baseURL должен быть выключен")
	}
	_, err := c.Attest(context.Background(), "hash", "identity")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидался ErrUnavailable, получено %v", err)
	}
}

func TestAttestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of gas", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, slog.Default())
	_, err := c.Attest(context.Background(), "hash", "identity")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидался ErrUnavailable, получено %v", err)
	}
}

func TestAttestEmptyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transaction_id":""}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, slog.Default())
	_, err := c.Attest(context.Background(), "hash", "identity")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидался ErrUnavailable, получено %v", err)
	}
}
