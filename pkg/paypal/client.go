// Package paypal is a thin client for the PayPal Payouts API: token, create
// a single-recipient batch, and read a batch back.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/money"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	tokenPath   = "/v1/oauth2/token"
	payoutsPath = "/v1/payments/payouts"

	maxErrorBody = 4 << 10
)

var (
	errClientIDRequired  = errors.New("paypal client id is required")
	errSecretRequired    = errors.New("paypal client secret is required")
	errInvalidPayPalEnv  = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
	errMissingBatchID    = errors.New("paypal response carried no payout_batch_id")
	errBatchIDRequired   = errors.New("payout batch id is required")
	errRecipientRequired = errors.New("payout recipient email is required")
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Operation  string
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal %s: %d %s: %s", e.Operation, e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("paypal %s: status %d", e.Operation, e.StatusCode)
}

// PayoutRequest describes one payout to one recipient.
type PayoutRequest struct {
	SenderBatchID string
	ReceiverEmail string
	AmountCents   int64
	Note          string
}

// Batch is the subset of a payout batch the ledger cares about.
type Batch struct {
	BatchID           string
	BatchStatus       string
	TransactionStatus string
	ErrorName         string
	ErrorMessage      string
}

// Client talks to the Payouts API with an auto-refreshing bearer token.
type Client struct {
	http        *http.Client
	baseURL     string
	currency    string
	environment string
}

// NewClient builds a client for the configured environment. ctx scopes
// token refreshes and should live as long as the client.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if env == liveEnv {
			baseURL = liveBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}

	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	base := &http.Client{Timeout: timeout}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	httpClient := creds.Client(tokenCtx)
	httpClient.Timeout = timeout

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}

	return &Client{
		http:        httpClient,
		baseURL:     baseURL,
		currency:    currency,
		environment: env,
	}, nil
}

// Environment reports the normalized PayPal environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreatePayout submits a single-item payout batch.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Batch, error) {
	email := strings.TrimSpace(req.ReceiverEmail)
	if email == "" {
		return nil, errRecipientRequired
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("payout amount must be positive")
	}
	note := req.Note
	if note == "" {
		note = "Thanks for using SurveyCash"
	}

	payload := map[string]any{
		"sender_batch_header": map[string]any{
			"sender_batch_id": req.SenderBatchID,
			"email_subject":   "You have a payout!",
			"email_message":   note,
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       email,
			"note":           note,
			"sender_item_id": req.SenderBatchID,
			"amount": map[string]string{
				"value":    money.FormatCents(req.AmountCents),
				"currency": c.currency,
			},
		}},
	}
	body, err := c.do(ctx, "create_payout", http.MethodPost, payoutsPath, payload)
	if err != nil {
		return nil, err
	}
	batch := parseBatch(body)
	if batch.BatchID == "" {
		return nil, errMissingBatchID
	}
	return batch, nil
}

// GetPayoutBatch reads the batch and its first item.
func (c *Client) GetPayoutBatch(ctx context.Context, batchID string) (*Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, errBatchIDRequired
	}
	body, err := c.do(ctx, "get_payout", http.MethodGet, payoutsPath+"/"+batchID, nil)
	if err != nil {
		return nil, err
	}
	batch := parseBatch(body)
	if batch.BatchID == "" {
		batch.BatchID = batchID
	}
	return batch, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", operation, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		parsed := gjson.ParseBytes(body)
		return nil, &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Name:       parsed.Get("name").String(),
			Message:    parsed.Get("message").String(),
		}
	}
	return body, nil
}

func parseBatch(body []byte) *Batch {
	parsed := gjson.ParseBytes(body)
	item := parsed.Get("items.0")
	return &Batch{
		BatchID:           parsed.Get("batch_header.payout_batch_id").String(),
		BatchStatus:       strings.ToUpper(parsed.Get("batch_header.batch_status").String()),
		TransactionStatus: strings.ToUpper(item.Get("transaction_status").String()),
		ErrorName:         item.Get("errors.name").String(),
		ErrorMessage:      item.Get("errors.message").String(),
	}
}

func normalizeEnv(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", sandboxEnv:
		return sandboxEnv, nil
	case liveEnv, "production", "prod":
		return liveEnv, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
