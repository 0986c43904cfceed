package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain id", path: "/cus_123", wantValue: "cus_123"},
		{name: "dots and dashes", path: "/acct.eu-1_x", wantValue: "acct.eu-1_x"},
		{name: "encoded slash", path: "/tenant%2F42", wantValue: "tenant/42"},
		{name: "encoded at", path: "/ops%40acme", wantValue: "ops@acme"},
		{name: "encoded space only", path: "/%20", wantErrMsg: "entityId cannot be empty"},
		{name: "encoded tab only", path: "/%09", wantErrMsg: "entityId cannot be empty"},
		{name: "space inside", path: "/cus%20123", wantErrMsg: "entityId cannot contain whitespace"},
		{name: "trailing newline", path: "/cus_123%0A", wantErrMsg: "entityId cannot contain whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				got    string
				gotErr error
			)
			r := chi.NewRouter()
			r.Get("/{entityId}", func(_ http.ResponseWriter, req *http.Request) {
				got, gotErr = URLParam(req, "entityId")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantErrMsg != "" {
				require.Error(t, gotErr)
				assert.Equal(t, tt.wantErrMsg, gotErr.Error())
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestURLParam_NoRouteContext(t *testing.T) {
	t.Parallel()

	_, err := URLParam(httptest.NewRequest(http.MethodGet, "/x", nil), "entityId")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "entity id must not be empty", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "entity id must not be empty", body.Error)
}

func TestWriteJSONResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteJSONResponse(rr, map[string]int{"depth": 3}, http.StatusAccepted)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"depth":3}`, rr.Body.String())
}
