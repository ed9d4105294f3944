package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridgeServer(t *testing.T, handler func(op string, params map[string]interface{}) (int, interface{})) *BridgeClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req struct {
			Op     string                 `json:"op"`
			Params map[string]interface{} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req.Op, req.Params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return NewBridgeClient(srv.URL, 5*time.Second)
}

func TestBridgeClient_FetchFollowerPage(t *testing.T) {
	client := newBridgeServer(t, func(op string, params map[string]interface{}) (int, interface{}) {
		assert.Equal(t, OpFetchFollowerPage, op)
		assert.Equal(t, "42", params["userId"])
		assert.Equal(t, "abc123", params["cursor"])
		assert.EqualValues(t, 50, params["pageSize"])
		return http.StatusOK, map[string]interface{}{
			"ok": true,
			"data": map[string]interface{}{
				"items":      []map[string]interface{}{{"userId": "7", "username": "hiker"}},
				"nextCursor": "def456",
			},
		}
	})

	page, err := client.FetchFollowerPage(context.Background(), "42", "abc123", 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "hiker", page.Items[0].Username)
	assert.Equal(t, "def456", page.NextCursor)
}

func TestBridgeClient_FirstPageOmitsCursor(t *testing.T) {
	client := newBridgeServer(t, func(op string, params map[string]interface{}) (int, interface{}) {
		_, has := params["cursor"]
		assert.False(t, has)
		return http.StatusOK, map[string]interface{}{"ok": true, "data": map[string]interface{}{"items": []interface{}{}}}
	})

	page, err := client.FetchFollowerPage(context.Background(), "42", "", 50)
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
}

func TestBridgeClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
		spam   bool
		check  func(t *testing.T, err error)
	}{
		{"rate limited", 429, KindRateLimited, false, func(t *testing.T, err error) {
			assert.True(t, apperrors.IsRateLimited(err))
		}},
		{"action blocked spam", 400, KindActionBlocked, true, func(t *testing.T, err error) {
			catErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.True(t, apperrors.IsActionBlocked(err))
			assert.Equal(t, "spam_detected", string(catErr.Signal()))
		}},
		{"checkpoint", 400, KindCheckpointRequired, false, func(t *testing.T, err error) {
			assert.True(t, apperrors.IsCheckpoint(err))
		}},
		{"not authenticated", 401, KindNotAuthenticated, false, func(t *testing.T, err error) {
			assert.True(t, apperrors.IsNotAuthenticated(err))
		}},
		{"content not found", 404, KindContentNotFound, false, func(t *testing.T, err error) {
			assert.True(t, apperrors.IsContentNotFound(err))
		}},
		{"server error", 502, "upstream", false, func(t *testing.T, err error) {
			code, ok := apperrors.StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, 502, code)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newBridgeServer(t, func(op string, params map[string]interface{}) (int, interface{}) {
				return tt.status, map[string]interface{}{
					"ok":    false,
					"error": map[string]interface{}{"kind": tt.kind, "message": tt.name, "spam": tt.spam},
				}
			})
			_, err := client.LikeItem(context.Background(), "media-1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestBridgeClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewBridgeClient(srv.URL, time.Second).GetProfile(context.Background(), "1")
	code, ok := apperrors.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
