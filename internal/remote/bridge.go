package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
)

// Bridge operation names
const (
	OpResolveUsername    = "resolveUsername"
	OpGetProfile         = "getProfile"
	OpFetchFollowerPage  = "fetchFollowerPage"
	OpFetchRecentContent = "fetchRecentContent"
	OpLikeItem           = "likeItem"
	OpFollowUser         = "followUser"
)

// Error kinds reported by the bridge
const (
	KindRateLimited        = "rate_limited"
	KindActionBlocked      = "action_blocked"
	KindCheckpointRequired = "checkpoint_required"
	KindNotAuthenticated   = "not_authenticated"
	KindContentNotFound    = "content_not_found"
)

// BridgeClient calls the session bridge: a process running inside the
// authenticated session that executes named operations and answers JSON.
type BridgeClient struct {
	url        string
	httpClient *http.Client
}

// NewBridgeClient creates a client for the bridge at url
func NewBridgeClient(url string, timeout time.Duration) *BridgeClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BridgeClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type bridgeRequest struct {
	Op     string      `json:"op"`
	Params interface{} `json:"params"`
}

type bridgeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Spam    bool   `json:"spam,omitempty"`
}

type bridgeResponse struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *bridgeError    `json:"error,omitempty"`
}

// call posts one operation and decodes its data into out
func (c *BridgeClient) call(ctx context.Context, op string, params interface{}, out interface{}) error {
	body, err := json.Marshal(bridgeRequest{Op: op, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("bridge %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	var envelope bridgeResponse
	if jsonErr := json.Unmarshal(raw, &envelope); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return apperrors.NewStatusError(resp.StatusCode, fmt.Sprintf("bridge %s: %s", op, string(raw)))
		}
		return fmt.Errorf("failed to parse %s response: %w", op, jsonErr)
	}

	if !envelope.OK || envelope.Error != nil {
		return mapBridgeError(op, resp.StatusCode, envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.NewStatusError(resp.StatusCode, fmt.Sprintf("bridge %s returned status %d", op, resp.StatusCode))
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", op, err)
		}
	}
	return nil
}

func mapBridgeError(op string, httpStatus int, e *bridgeError) error {
	if e == nil {
		return apperrors.NewStatusError(httpStatus, fmt.Sprintf("bridge %s failed", op))
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind
	}
	switch e.Kind {
	case KindRateLimited:
		return apperrors.NewRateLimitedError(msg)
	case KindActionBlocked:
		return apperrors.NewActionBlockedError(msg, e.Spam)
	case KindCheckpointRequired:
		return apperrors.NewCheckpointRequiredError(msg)
	case KindNotAuthenticated:
		return apperrors.NewNotAuthenticatedError(msg)
	case KindContentNotFound:
		return apperrors.NewContentNotFoundError(op, msg)
	}

	status := e.Status
	if status == 0 {
		status = httpStatus
	}
	if status == 0 || status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	return apperrors.NewStatusError(status, msg)
}

// ResolveUsername maps a username to its profile
func (c *BridgeClient) ResolveUsername(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	var out models.ProfileSnapshot
	if err := c.call(ctx, OpResolveUsername, map[string]string{"username": username}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile refreshes a profile by id
func (c *BridgeClient) GetProfile(ctx context.Context, userID string) (*models.ProfileSnapshot, error) {
	var out models.ProfileSnapshot
	if err := c.call(ctx, OpGetProfile, map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchFollowerPage returns one follower page
func (c *BridgeClient) FetchFollowerPage(ctx context.Context, userID, cursor string, pageSize int) (*FollowerPage, error) {
	params := map[string]interface{}{"userId": userID, "pageSize": pageSize}
	if cursor != "" {
		params["cursor"] = cursor
	}
	var out FollowerPage
	if err := c.call(ctx, OpFetchFollowerPage, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchRecentContent returns recent items for a user
func (c *BridgeClient) FetchRecentContent(ctx context.Context, userID string, count int) ([]ContentItem, error) {
	var out struct {
		Items []ContentItem `json:"items"`
	}
	params := map[string]interface{}{"userId": userID, "count": count}
	if err := c.call(ctx, OpFetchRecentContent, params, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// LikeItem likes one item
func (c *BridgeClient) LikeItem(ctx context.Context, itemID string) (*LikeResult, error) {
	out := LikeResult{OK: true}
	if err := c.call(ctx, OpLikeItem, map[string]string{"itemId": itemID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowUser follows a user
func (c *BridgeClient) FollowUser(ctx context.Context, userID string) (*FriendshipStatus, error) {
	var out FriendshipStatus
	if err := c.call(ctx, OpFollowUser, map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
