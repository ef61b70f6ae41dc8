package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-network/veridian-api/internal/analytics/store"
	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/register"
	"github.com/veridian-network/veridian-api/internal/tx"
)

type fakeRegistrar struct {
	result *register.Result
	err    error
	calls  int
}

func (f *fakeRegistrar) Register(ctx context.Context, req *register.Request) (*register.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testServerConfig() *configs.Config {
	return &configs.Config{
		Server: configs.ServerConfig{
			Port:               5000,
			AllowedOrigins:     []string{"https://app.veridian.network"},
			RequestTimeout:     "5s",
			RegistrationLimit:  1,
			RegistrationWindow: "144h",
		},
	}
}

func newTestServer(t *testing.T, registrar Registrar) *Server {
	t.Helper()
	cfg := testServerConfig()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "analytics.json"))
	limiter := NewIPLimiter(cfg.Server.RegistrationLimit, cfg.RegistrationWindow())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(registrar, st, limiter, cfg, logger)
}

func postRegister(t *testing.T, handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"address": "veridian1sender",
		"idImage": "aGVsbG8=",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Register_Success(t *testing.T) {
	registrar := &fakeRegistrar{result: &register.Result{
		IDHash:  "deadbeef",
		Outcome: &tx.Outcome{Status: tx.StatusConfirmed, TxHash: "ABC123"},
	}}
	handler := newTestServer(t, registrar).Router()

	rec := postRegister(t, handler, "10.0.0.1:50000")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "deadbeef", resp.Hash)
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "ABC123", resp.TxHash)
}

func TestServer_Register_RateLimitPerIP(t *testing.T) {
	registrar := &fakeRegistrar{result: &register.Result{
		Outcome: &tx.Outcome{Status: tx.StatusConfirmed},
	}}
	handler := newTestServer(t, registrar).Router()

	require.Equal(t, http.StatusOK, postRegister(t, handler, "10.0.0.1:50000").Code)

	// 同一 IP 第二次被拒，换 IP 不受影响
	assert.Equal(t, http.StatusTooManyRequests, postRegister(t, handler, "10.0.0.1:50001").Code)
	assert.Equal(t, http.StatusOK, postRegister(t, handler, "10.0.0.2:50000").Code)
	assert.Equal(t, 2, registrar.calls)
}

func TestServer_Register_FailureDoesNotConsumeLimit(t *testing.T) {
	registrar := &fakeRegistrar{err: &register.VerificationRejectedError{Reason: "blurry photo"}}
	handler := newTestServer(t, registrar).Router()

	assert.Equal(t, http.StatusUnprocessableEntity, postRegister(t, handler, "10.0.0.1:50000").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, postRegister(t, handler, "10.0.0.1:50000").Code)
	assert.Equal(t, 2, registrar.calls, "failed attempts must be retryable")
}

func TestServer_Register_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &register.ValidationError{Field: "address", Reason: "must not be empty"}, http.StatusBadRequest},
		{"rejected", &register.VerificationRejectedError{Reason: "forged"}, http.StatusUnprocessableEntity},
		{"duplicate", register.ErrDuplicateRegistration, http.StatusConflict},
		{"underfunded", tx.ErrInsufficientBalance, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"internal", errors.New("lcd exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeRegistrar{err: tc.err}).Router()
			rec := postRegister(t, handler, "10.0.0.1:50000")
			assert.Equal(t, tc.code, rec.Code)

			var resp registerResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_Register_BadBody(t *testing.T) {
	handler := newTestServer(t, &fakeRegistrar{}).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Analytics(t *testing.T) {
	srv := newTestServer(t, &fakeRegistrar{})
	require.NoError(t, srv.store.Append(context.Background(), models.AnalyticsDataPoint{Timestamp: 1000, BasePrice: 0.1}))
	require.NoError(t, srv.store.Append(context.Background(), models.AnalyticsDataPoint{Timestamp: 2000, BasePrice: 0.2}))

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Latest  models.AnalyticsDataPoint   `json:"latest"`
		History []models.AnalyticsDataPoint `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.History, 2)
	assert.Equal(t, int64(2000), resp.Latest.Timestamp)
}

func TestServer_Health(t *testing.T) {
	handler := newTestServer(t, &fakeRegistrar{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestServer_CORS(t *testing.T) {
	handler := newTestServer(t, &fakeRegistrar{}).Router()

	// 预检请求放行已配置的来源
	req := httptest.NewRequest(http.MethodOptions, "/api/register", nil)
	req.Header.Set("Origin", "https://app.veridian.network")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.veridian.network", rec.Header().Get("Access-Control-Allow-Origin"))

	// 未配置的来源拿不到 CORS 头
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPLimiter_WindowExpiry(t *testing.T) {
	l := NewIPLimiter(1, 20*time.Millisecond)

	require.True(t, l.Allow("10.0.0.1"))
	l.Record("10.0.0.1")
	assert.False(t, l.Allow("10.0.0.1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"), "budget must come back after the window passes")
}
