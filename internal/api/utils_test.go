package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func TestRespondError(t *testing.T) {
	upstream := &types.UpstreamError{Provider: "yelp", StatusCode: 502, Payload: "bad gateway"}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", types.NewValidationError("location", "required"), http.StatusBadRequest},
		{"unauthenticated", types.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", types.ErrForbidden, http.StatusForbidden},
		{"conflict", fmt.Errorf("user: %w", types.ErrConflict), http.StatusConflict},
		{"not found", types.ErrNotFound, http.StatusNotFound},
		{"upstream", upstream, http.StatusServiceUnavailable},
		{"upstream 404", &types.UpstreamError{Provider: "yelp", StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"cache", &types.CacheError{Op: "get", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, false)
			assert.Equal(t, tt.status, rr.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, body.Details)
		})
	}

	t.Run("details only when exposed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RespondError(rr, httptest.NewRequest(http.MethodGet, "/", nil), upstream, true)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Contains(t, body.Details, "bad gateway")
		assert.Contains(t, body.Details, "status 502")
	})
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"x"}`, ""},
		{"empty", ``, "must not be empty"},
		{"truncated", `{"name":`, "badly-formed"},
		{"unknown field", `{"nick":"x"}`, `unknown key "nick"`},
		{"wrong type", `{"name":1}`, `field "name"`},
		{"two values", `{"name":"x"}{"name":"y"}`, "single JSON value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst payload
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeJSONBody(httptest.NewRecorder(), r, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "x", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
