package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrValidation: request ditolak sebelum nembak gateway (field wajib kosong).
// Mending gagal cepat daripada buang satu round trip ke gateway.
var ErrValidation = errors.New("field wajib tidak lengkap")

// GatewayError = gateway balas non-2xx. Body mentah dibawa buat diagnosa,
// error jenis ini JANGAN di-retry otomatis (request-nya yang salah).
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway balas %d: %s", e.StatusCode, e.Body)
}

type BillingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Metadata ikut dikirim ke gateway dan di-echo balik di webhook.
// PaymentType adalah kunci dispatch reconciler, jangan sampai kosong!
type Metadata struct {
	OrderID     string `json:"order_id"`
	PaymentType string `json:"payment_type"`
	UserID      string `json:"user_id"`
}

type IntentionRequest struct {
	Amount          int64       `json:"amount"` // Minor units
	Currency        string      `json:"currency"`
	IntegrationID   string      `json:"integration_id"`
	SaveCredential  bool        `json:"save_credential"` // Force save token kartu (buat cicilan)
	MerchantOrderID string      `json:"merchant_order_id"`
	Billing         BillingInfo `json:"billing"`
	Metadata        Metadata    `json:"metadata"`
}

type IntentionResponse struct {
	PaymentToken   string          `json:"payment_token"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Raw            json.RawMessage `json:"-"`
}

type ChargeResult struct {
	Success              bool            `json:"success"`
	GatewayTransactionID string          `json:"transaction_id"`
	Raw                  json.RawMessage `json:"-"`
}

// Charger = kemampuan minimal satu integrasi gateway.
// Dipakai handler (charge interaktif) dan scheduler (charge off-session).
type Charger interface {
	CreateIntention(ctx context.Context, req IntentionRequest) (*IntentionResponse, error)
	ChargeWithToken(ctx context.Context, credentialToken, paymentToken string) (*ChargeResult, error)
}

// Client = adapter REST ke gateway utama. Stateless, murni request/response.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// CreateIntention minta "intention" (niat charge) ke gateway.
// Balikannya payment token berumur pendek yang dipakai buat menyelesaikan charge.
func (g *Client) CreateIntention(ctx context.Context, req IntentionRequest) (*IntentionResponse, error) {
	// Validasi duluan biar gak buang round trip
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount harus > 0", ErrValidation)
	}
	// order_id boleh kosong (top-up wallet gak nempel ke order),
	// tapi payment_type & user_id wajib — itu kunci dispatch pas webhook balik
	if req.Metadata.PaymentType == "" || req.Metadata.UserID == "" {
		return nil, fmt.Errorf("%w: metadata payment_type/user_id kosong", ErrValidation)
	}
	if req.Billing.FirstName == "" || req.Billing.Email == "" || req.Billing.Phone == "" {
		return nil, fmt.Errorf("%w: data billing (nama/email/telepon) kosong", ErrValidation)
	}

	raw, err := g.post(ctx, "/v1/intention", req)
	if err != nil {
		return nil, err
	}

	var resp IntentionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gagal parse response intention: %w", err)
	}
	resp.Raw = raw
	return &resp, nil
}

// ChargeWithToken mengeksekusi charge off-session pakai token kartu tersimpan
// + payment token dari intention barusan.
func (g *Client) ChargeWithToken(ctx context.Context, credentialToken, paymentToken string) (*ChargeResult, error) {
	if credentialToken == "" || paymentToken == "" {
		return nil, fmt.Errorf("%w: credential/payment token kosong", ErrValidation)
	}

	body := map[string]string{
		"credential_token": credentialToken,
		"payment_token":    paymentToken,
	}

	raw, err := g.post(ctx, "/v1/charge-token", body)
	if err != nil {
		return nil, err
	}

	var resp ChargeResult
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gagal parse response charge: %w", err)
	}
	resp.Raw = raw
	return &resp, nil
}

func (g *Client) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		// Error jaringan/timeout: boleh di-retry sama caller
		return nil, fmt.Errorf("request gateway gagal: %w", err)
	}
	defer res.Body.Close()

	rawBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("gagal baca response gateway: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: res.StatusCode, Body: string(rawBody)}
	}

	return rawBody, nil
}
