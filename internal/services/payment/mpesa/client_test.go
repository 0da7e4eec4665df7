package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stakeoption/internal/config"
	appErrors "stakeoption/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokens struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryTokens) GetString(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryTokens) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func testConfig() config.Mpesa {
	return config.Mpesa{
		ConsumerKey:        "key",
		ConsumerSecret:     "secret",
		Passkey:            "passkey",
		ShortCode:          "174379",
		B2CShortCode:       "600000",
		InitiatorName:      "api",
		SecurityCredential: "cred",
		CallbackBaseURL:    "https://cb.example.com",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *memoryTokens) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := newMemoryTokens()
	c := NewClient(testConfig(), tokens, nil)
	c.baseURL = srv.URL
	c.now = func() time.Time { return fixedNow }
	return c, tokens
}

func oauthHandler(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	}
}

func TestPassword(t *testing.T) {
	pw, ts := Password("174379", "passkey", fixedNow)
	assert.Equal(t, "20260203040506", ts)
	raw, err := base64.StdEncoding.DecodeString(pw)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20260203040506", string(raw))
}

func TestTokenIsCached(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(&calls))
	c, tokens := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		tok, err := c.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, tokenTTL, tokens.ttls[tokenCacheKey])
}

func TestTokenRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Token(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrMpesaAuthFailed)
}

func TestSTKPush(t *testing.T) {
	var calls int32
	var got STKPushRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(&calls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(STKPushResponse{
			MerchantRequestID: "m-1",
			CheckoutRequestID: "ws_CO_1",
			ResponseCode:      "0",
		})
	})
	c, _ := newTestClient(t, mux)

	res, err := c.STKPush(context.Background(), "254712345678", decimal.RequireFromString("150.60"), "StakeOption")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	pw, ts := Password("174379", "passkey", fixedNow)
	assert.Equal(t, pw, got.Password)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, int64(151), got.Amount)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.Equal(t, "174379", got.PartyB)
	assert.Equal(t, "CustomerPayBillOnline", got.TransactionType)
	assert.Equal(t, "https://cb.example.com/api/mpesa/callback/stk", got.CallBackURL)
}

func TestSTKPushRejected(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(&calls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": "400.002.02", "errorMessage": "Bad Request - Invalid PhoneNumber"})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.STKPush(context.Background(), "254712345678", decimal.NewFromInt(100), "StakeOption")
	require.ErrorIs(t, err, appErrors.ErrSTKPushFailed)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")
}

func TestB2C(t *testing.T) {
	var calls int32
	var got B2CRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(&calls))
	mux.HandleFunc("/mpesa/b2c/v3/paymentrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(B2CResponse{
			ConversationID:           "AG_1",
			OriginatorConversationID: got.OriginatorConversationID,
			ResponseCode:             "0",
		})
	})
	c, _ := newTestClient(t, mux)

	res, err := c.B2C(context.Background(), "req-1", "254712345678", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "AG_1", res.ConversationID)
	assert.Equal(t, "req-1", got.OriginatorConversationID)
	assert.Equal(t, "BusinessPayment", got.CommandID)
	assert.Equal(t, "600000", got.PartyA)
	assert.Equal(t, int64(500), got.Amount)
	assert.Equal(t, "https://cb.example.com/api/mpesa/callback/b2c/result", got.ResultURL)
	assert.Equal(t, "https://cb.example.com/api/mpesa/callback/b2c/timeout", got.QueueTimeOutURL)
}

func TestParseSTKCallback(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":250.0},
			{"Name":"MpesaReceiptNumber","Value":"QK123ABC"},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`)

	cb, err := ParseSTKCallback(payload)
	require.NoError(t, err)
	assert.True(t, cb.Success())
	assert.Equal(t, "ws_CO_1", cb.CheckoutRequestID)
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "QK123ABC", cb.Receipt)
	assert.Equal(t, "254712345678", cb.Phone)
	assert.Contains(t, cb.Raw, "Body")

	failed, err := ParseSTKCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`))
	require.NoError(t, err)
	assert.False(t, failed.Success())
	assert.True(t, failed.Amount.IsZero())

	_, err = ParseSTKCallback([]byte(`{"Body":{}}`))
	assert.Error(t, err)
}

func TestParseB2CResult(t *testing.T) {
	payload := []byte(`{"Result":{
		"ResultType":0,"ResultCode":0,"ResultDesc":"The service request is processed successfully.",
		"OriginatorConversationID":"req-1","ConversationID":"AG_1","TransactionID":"NLJ41HAY6Q",
		"ResultParameters":{"ResultParameter":[
			{"Key":"TransactionAmount","Value":500},
			{"Key":"TransactionReceipt","Value":"NLJ41HAY6Q"}
		]}}}`)

	r, err := ParseB2CResult(payload)
	require.NoError(t, err)
	assert.True(t, r.Success())
	assert.Equal(t, "AG_1", r.ConversationID)
	assert.Equal(t, "NLJ41HAY6Q", r.Receipt)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(500)))

	timeout, err := ParseB2CResult([]byte(`{"Result":{"ResultCode":"1","ResultDesc":"timeout","ConversationID":"AG_2"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, timeout.ResultCode)
	assert.False(t, timeout.Success())

	_, err = ParseB2CResult([]byte(`{}`))
	assert.Error(t, err)
}
