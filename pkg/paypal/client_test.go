package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/surveycash/surveycash-backend/pkg/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		Env:          "sandbox",
		BaseURL:      baseURL,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.PayPalConfig{ClientSecret: "s"}, nil)
	assert.ErrorIs(t, err, errClientIDRequired)

	_, err = NewClient(context.Background(), config.PayPalConfig{ClientID: "c"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(context.Background(), config.PayPalConfig{ClientID: "c", ClientSecret: "s", Env: "staging"}, nil)
	assert.ErrorIs(t, err, errInvalidPayPalEnv)

	client, err := NewClient(context.Background(), config.PayPalConfig{ClientID: "c", ClientSecret: "s", Env: "LIVE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, liveEnv, client.Environment())
	assert.Equal(t, liveBaseURL, client.baseURL)
}

func TestCreatePayout(t *testing.T) {
	srv, tokenCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, payoutsPath, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, _ := json.Marshal(body)
		parsed := gjson.ParseBytes(raw)
		assert.Equal(t, "w-1", parsed.Get("sender_batch_header.sender_batch_id").String())
		assert.Equal(t, "pay@example.com", parsed.Get("items.0.receiver").String())
		assert.Equal(t, "5.00", parsed.Get("items.0.amount.value").String())
		assert.Equal(t, "USD", parsed.Get("items.0.amount.currency").String())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"batch_header":{"payout_batch_id":"BATCH-1","batch_status":"PENDING"}}`))
	})
	client := newTestClient(t, srv.URL)

	batch, err := client.CreatePayout(context.Background(), PayoutRequest{
		SenderBatchID: "w-1",
		ReceiverEmail: "pay@example.com",
		AmountCents:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, "BATCH-1", batch.BatchID)
	assert.Equal(t, "PENDING", batch.BatchStatus)

	_, err = client.CreatePayout(context.Background(), PayoutRequest{SenderBatchID: "w-2", ReceiverEmail: "pay@example.com", AmountCents: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, *tokenCalls, "token must be cached between calls")
}

func TestCreatePayoutRejectsBadInput(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.CreatePayout(context.Background(), PayoutRequest{AmountCents: 500})
	assert.ErrorIs(t, err, errRecipientRequired)
	_, err = client.CreatePayout(context.Background(), PayoutRequest{ReceiverEmail: "a@b.co"})
	assert.Error(t, err)
}

func TestCreatePayoutSurfacesAPIError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"INSUFFICIENT_FUNDS","message":"Sender does not have sufficient funds."}`))
	})
	client := newTestClient(t, srv.URL)

	_, err := client.CreatePayout(context.Background(), PayoutRequest{SenderBatchID: "w", ReceiverEmail: "a@b.co", AmountCents: 500})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "INSUFFICIENT_FUNDS", apiErr.Name)
	assert.Equal(t, "create_payout", apiErr.Operation)
}

func TestGetPayoutBatch(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, payoutsPath+"/BATCH-9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"batch_header":{"payout_batch_id":"BATCH-9","batch_status":"success"},
			"items":[{"transaction_status":"unclaimed","errors":{"name":"RECEIVER_UNREGISTERED","message":"Receiver is unregistered"}}]
		}`))
	})
	client := newTestClient(t, srv.URL)

	batch, err := client.GetPayoutBatch(context.Background(), "BATCH-9")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", batch.BatchStatus)
	assert.Equal(t, "UNCLAIMED", batch.TransactionStatus)
	assert.Equal(t, "RECEIVER_UNREGISTERED", batch.ErrorName)

	_, err = client.GetPayoutBatch(context.Background(), " ")
	assert.ErrorIs(t, err, errBatchIDRequired)
}
