package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPWallet talks to the platform wallet API over HTTP. It implements both
// Accounts and Payouts.
type HTTPWallet struct {
	baseURL     string
	client      *http.Client
	adminSecret string
}

// NewHTTPWallet creates a wallet client for the given API base URL.
func NewHTTPWallet(baseURL string, adminSecret string) *HTTPWallet {
	return &HTTPWallet{
		baseURL:     baseURL,
		adminSecret: adminSecret,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type balanceResponse struct {
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
}

type deductRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
}

type deductResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Balance int    `json:"balance"`
}

type payoutRequest struct {
	UserID    string `json:"userId"`
	Amount    int    `json:"amount"`
	Reference string `json:"reference"`
}

type payoutResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Balance implements Accounts.
func (w *HTTPWallet) Balance(ctx context.Context, userID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/balance/"+userID, nil)
	if err != nil {
		return 0, fmt.Errorf("create balance request: %w", err)
	}
	w.setHeaders(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrUnknownUser
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("balance request failed: status %d", resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode balance response: %w", err)
	}
	return body.Balance, nil
}

// Deduct implements Accounts.
func (w *HTTPWallet) Deduct(ctx context.Context, userID string, amount int) error {
	var body deductResponse
	status, err := w.post(ctx, "/deduct", deductRequest{UserID: userID, Amount: amount}, &body)
	if err != nil {
		return err
	}

	switch {
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	case status == http.StatusNotFound:
		return ErrUnknownUser
	case body.Success:
		return nil
	case body.Code == "insufficient_funds" || status == http.StatusPaymentRequired:
		return ErrInsufficientFunds
	default:
		return fmt.Errorf("deduct failed: status %d code %q", status, body.Code)
	}
}

// Payout implements Payouts. The platform applies a reference at most once,
// so re-sending an already processed reference returns the original
// transaction id.
func (w *HTTPWallet) Payout(ctx context.Context, userID string, amount int, reference string) (string, error) {
	var body payoutResponse
	status, err := w.post(ctx, "/payout", payoutRequest{UserID: userID, Amount: amount, Reference: reference}, &body)
	if err != nil {
		return "", err
	}

	switch {
	case status >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, status)
	case body.Success:
		return body.TransactionID, nil
	default:
		return "", fmt.Errorf("payout failed: status %d code %q message %q", status, body.Code, body.Message)
	}
}

func (w *HTTPWallet) post(ctx context.Context, path string, payload any, out any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	w.setHeaders(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 500 {
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (w *HTTPWallet) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if w.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", w.adminSecret)
	}
}
