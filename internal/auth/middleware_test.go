package auth

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/stacklok/billing-sync-server/internal/config"
)

const testSecret = "whsec_test"

var signedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	valid := Sign(testSecret, body, signedAt)

	tests := []struct {
		name    string
		header  string
		body    []byte
		now     time.Time
		wantErr error
	}{
		{name: "valid", header: valid, body: body, now: signedAt},
		{name: "valid within tolerance", header: valid, body: body, now: signedAt.Add(4 * time.Minute)},
		{
			name:   "rotated secret alongside current",
			header: valid + ",v1=" + "00ff",
			body:   body,
			now:    signedAt,
		},
		{
			name:   "unknown scheme ignored",
			header: valid + ",v0=deadbeef",
			body:   body,
			now:    signedAt,
		},
		{name: "missing", header: "", body: body, now: signedAt, wantErr: ErrMissingSignature},
		{name: "no timestamp", header: "v1=00ff", body: body, now: signedAt, wantErr: ErrMalformedSignature},
		{name: "no signature", header: "t=1772366400", body: body, now: signedAt, wantErr: ErrMalformedSignature},
		{name: "bad hex", header: "t=1772366400,v1=zz", body: body, now: signedAt, wantErr: ErrMalformedSignature},
		{name: "no equals", header: "garbage", body: body, now: signedAt, wantErr: ErrMalformedSignature},
		{
			name:    "tampered body",
			header:  valid,
			body:    []byte(`{"id":"evt_2"}`),
			now:     signedAt,
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "wrong secret",
			header:  Sign("other", body, signedAt),
			body:    body,
			now:     signedAt,
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "stale",
			header:  valid,
			body:    body,
			now:     signedAt.Add(6 * time.Minute),
			wantErr: ErrTimestampOutsideTolerance,
		},
		{
			name:    "future dated",
			header:  valid,
			body:    body,
			now:     signedAt.Add(-6 * time.Minute),
			wantErr: ErrTimestampOutsideTolerance,
		},
	}

	v, err := NewVerifier(testSecret, 5*time.Minute)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Verify(tt.header, tt.body, tt.now)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewVerifier_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier("", time.Minute)
	require.Error(t, err)

	_, err = NewVerifier(testSecret, 0)
	require.Error(t, err)
}

func TestSignatureMiddleware(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name       string
		header     string
		body       []byte
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "valid signature",
			header:     Sign(testSecret, body, signedAt),
			body:       body,
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "missing signature",
			body:       body,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad signature",
			header:     Sign("other", body, signedAt),
			body:       body,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "body too large",
			header:     Sign(testSecret, body, signedAt),
			body:       bytes.Repeat([]byte("a"), maxSignedBodyBytes+1),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	v, err := NewVerifier(testSecret, time.Minute)
	require.NoError(t, err)
	mw := SignatureMiddleware(v, clocktesting.NewFakeClock(signedAt))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				called   bool
				received []byte
			)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				received, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/billing", bytes.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(SignatureHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantCalled {
				assert.Equal(t, tt.body, received, "the verified body is passed through")
			}
		})
	}
}

func TestNewWebhookMiddleware(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(signedAt)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("nil config passes through", func(t *testing.T) {
		t.Parallel()

		mw, err := NewWebhookMiddleware(nil, clk)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("secret file enables verification", func(t *testing.T) {
		t.Parallel()

		secretFile := filepath.Join(t.TempDir(), "whsec")
		require.NoError(t, os.WriteFile(secretFile, []byte(testSecret+"\n"), 0600))

		mw, err := NewWebhookMiddleware(&config.WebhookConfig{SecretFile: secretFile}, clk)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
		req.Header.Set(SignatureHeader, Sign(testSecret, []byte("{}"), signedAt))
		rec = httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing secret file", func(t *testing.T) {
		t.Parallel()

		_, err := NewWebhookMiddleware(&config.WebhookConfig{
			SecretFile: filepath.Join(t.TempDir(), "absent"),
		}, clk)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read webhook secret")
	})
}
