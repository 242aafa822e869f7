// Package panel talks to the remote moderation panel over HTTP. The panel
// owns the ground truth for punishments, staff and notifications; this
// client only ferries requests and responses.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	retryDelay     = 300 * time.Millisecond
	requestTimeout = 5 * time.Second
)

// ErrUnavailable marks a panel call that failed because the panel was
// temporarily unreachable or overloaded. Callers treat it as expected and
// wait for the next tick instead of retrying out of band.
var ErrUnavailable = errors.New("panel temporarily unavailable")

// Client is an HTTP client for the panel API.
type Client struct {
	url string
	key string

	client *http.Client
	log    *slog.Logger
}

// NewClient creates a panel client for the given base URL and API key.
func NewClient(log *slog.Logger, url, key string) *Client {
	return &Client{
		url: url,
		key: key,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

// Sync sends one reconciliation request and returns the panel's delta.
func (c *Client) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call(ctx, http.MethodPost, "/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AcknowledgePunishment reports the outcome of enforcing a punishment.
func (c *Client) AcknowledgePunishment(ctx context.Context, ack *PunishmentAck) error {
	return c.call(ctx, http.MethodPost, "/punishment/acknowledge", ack, nil)
}

// AcknowledgeNotifications acknowledges a batch of delivered notifications.
func (c *Client) AcknowledgeNotifications(ctx context.Context, ack *NotificationAck) error {
	return c.call(ctx, http.MethodPost, "/notifications/acknowledge", ack, nil)
}

// StaffPermissions fetches the panel's full staff permission dump.
func (c *Client) StaffPermissions(ctx context.Context) (*StaffPermissionsResponse, error) {
	var resp StaffPermissionsResponse
	if err := c.call(ctx, http.MethodGet, "/staff/permissions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PunishmentTypes fetches the panel's punishment type catalog.
func (c *Client) PunishmentTypes(ctx context.Context) (*PunishmentTypesResponse, error) {
	var resp PunishmentTypesResponse
	if err := c.call(ctx, http.MethodGet, "/punishment-types", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckLogin asks the panel whether a joining player may enter. Used by
// the login gate outside the tick cycle.
func (c *Client) CheckLogin(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	var resp LoginResult
	if err := c.call(ctx, http.MethodPost, "/player/login", req, &resp); err != nil {
		return nil, err
	}
	resp.Request = *req
	return &resp, nil
}

// call performs one panel request with bounded retries on temporary
// errors. Rate limiting backs off linearly, mirroring the panel's own
// guidance of "wait and come back".
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var rawBody []byte
	if body != nil {
		var err error
		if rawBody, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		httpReq, err := http.NewRequestWithContext(reqCtx, method, c.url+path, bytes.NewReader(rawBody))
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("authorization", c.key)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if isTemporaryError(err) {
				continue
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			if out == nil {
				resp.Body.Close()
				return nil
			}
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		case http.StatusNoContent:
			resp.Body.Close()
			return nil
		case http.StatusServiceUnavailable:
			resp.Body.Close()
			lastErr = ErrUnavailable
			continue
		case http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited")
			time.Sleep(time.Duration(attempt+1) * retryDelay)
			continue
		default:
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("panel returned %d: %s", resp.StatusCode, string(raw))
		}
	}

	if isTemporaryError(lastErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
	}
	return lastErr
}

// isTemporaryError checks if an error is temporary and can be retried.
// It checks for context deadline exceeded errors and network-related
// errors like timeouts.
func isTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
