package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPWallet_Balance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/balance/user-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(balanceResponse{UserID: "user-1", Balance: 170})
	}))
	defer server.Close()

	wallet := NewHTTPWallet(server.URL, "")

	balance, err := wallet.Balance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if balance != 170 {
		t.Errorf("expected balance 170, got %d", balance)
	}

	_, err = wallet.Balance(context.Background(), "nobody")
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestHTTPWallet_Deduct(t *testing.T) {
	var gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Admin-Secret")

		var req deductRequest
		json.NewDecoder(r.Body).Decode(&req)

		switch {
		case req.UserID == "nobody":
			w.WriteHeader(http.StatusNotFound)
		case req.Amount > 100:
			json.NewEncoder(w).Encode(deductResponse{Success: false, Code: "insufficient_funds"})
		default:
			json.NewEncoder(w).Encode(deductResponse{Success: true, Balance: 100 - req.Amount})
		}
	}))
	defer server.Close()

	wallet := NewHTTPWallet(server.URL, "s3cret")

	if err := wallet.Deduct(context.Background(), "user-1", 50); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotSecret != "s3cret" {
		t.Errorf("expected admin secret header, got %q", gotSecret)
	}

	err := wallet.Deduct(context.Background(), "user-1", 500)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	err = wallet.Deduct(context.Background(), "nobody", 10)
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestHTTPWallet_DeductPaymentRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(deductResponse{Success: false})
	}))
	defer server.Close()

	wallet := NewHTTPWallet(server.URL, "")
	err := wallet.Deduct(context.Background(), "user-1", 10)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestHTTPWallet_Payout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req payoutRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Reference == "" {
			json.NewEncoder(w).Encode(payoutResponse{Success: false, Code: "missing_reference"})
			return
		}
		json.NewEncoder(w).Encode(payoutResponse{Success: true, TransactionID: "txn-9"})
	}))
	defer server.Close()

	wallet := NewHTTPWallet(server.URL, "")

	txn, err := wallet.Payout(context.Background(), "user-1", 250, "room_10_abc/7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if txn != "txn-9" {
		t.Errorf("expected txn-9, got %s", txn)
	}

	_, err = wallet.Payout(context.Background(), "user-1", 250, "")
	if err == nil {
		t.Error("expected error for rejected payout")
	}
}

func TestHTTPWallet_ServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wallet := NewHTTPWallet(server.URL, "")

	if _, err := wallet.Balance(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if err := wallet.Deduct(context.Background(), "user-1", 10); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if _, err := wallet.Payout(context.Background(), "user-1", 10, "ref"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPWallet_Unreachable(t *testing.T) {
	wallet := NewHTTPWallet("http://127.0.0.1:1", "")

	if _, err := wallet.Balance(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
