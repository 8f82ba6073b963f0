// Package apiclient issues authenticated requests to the automation backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/auth"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
)

// Session is the part of the identity session the client needs to recover
// credentials.
type Session interface {
	CurrentIdentity() *model.Identity
	// ForceRefresh fetches a fresh token and stores it as current.
	ForceRefresh(ctx context.Context) (string, error)
	// Expire runs the full sign-out teardown after an unrecoverable 401.
	Expire(ctx context.Context)
}

type Client struct {
	reqCtx     *auth.RequestContext
	httpClient *http.Client
	notifier   notify.Notifier

	mu      sync.RWMutex
	session Session
}

func New(reqCtx *auth.RequestContext, timeout time.Duration, notifier notify.Notifier) *Client {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Client{
		reqCtx:     reqCtx,
		httpClient: &http.Client{Timeout: timeout},
		notifier:   notifier,
	}
}

// BindSession attaches the session. It is set after construction because
// the session manager itself depends on calls made through this client.
func (c *Client) BindSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Call sends a JSON request and decodes the JSON response into out (which
// may be nil). A 401 is retried exactly once after a forced token refresh;
// if that fails the session is expired. Every failure except a missing
// token is also reported through the notifier.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to encode request", err)
		}
	}

	status, respBody, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return c.fail(ctx, apperrors.Remote(0, "Failed to reach backend", err))
	}

	if status == http.StatusUnauthorized {
		status, respBody, err = c.retryUnauthorized(ctx, method, path, payload)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return c.fail(ctx, RemoteError(status, respBody))
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return c.fail(ctx, apperrors.Remote(0, "Invalid response from backend", err))
		}
	}
	return nil
}

// retryUnauthorized is the single recovery attempt after a 401. It never
// recurses: any failure here ends the session.
func (c *Client) retryUnauthorized(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	session := c.currentSession()
	if session == nil || session.CurrentIdentity() == nil {
		return 0, nil, c.expire(ctx, errors.New("unauthorized without identity"))
	}

	token, err := session.ForceRefresh(ctx)
	if err != nil {
		return 0, nil, c.expire(ctx, fmt.Errorf("token refresh: %w", err))
	}

	log.Debug().Str("method", method).Str("path", path).Msg("retrying request after token refresh")

	status, body, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return 0, nil, c.expire(ctx, fmt.Errorf("retry: %w", err))
	}
	if status == http.StatusUnauthorized {
		return 0, nil, c.expire(ctx, errors.New("retry rejected with 401"))
	}
	return status, body, nil
}

func (c *Client) expire(ctx context.Context, cause error) error {
	log.Warn().Err(cause).Msg("session expired")
	if session := c.currentSession(); session != nil {
		session.Expire(ctx)
	}
	c.notifier.Notify(ctx, notify.LevelError, apperrors.MessageSessionExpired)
	return apperrors.SessionExpired(cause)
}

func (c *Client) fail(ctx context.Context, err *apperrors.AppError) error {
	c.notifier.Notify(ctx, notify.LevelError, err.Message)
	return err
}

// ensureToken returns the current token, fetching a fresh one when there is
// none but an identity is signed in.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if token := c.reqCtx.Token(); token != "" {
		return token, nil
	}

	session := c.currentSession()
	if session == nil || session.CurrentIdentity() == nil {
		return "", apperrors.AuthRequired()
	}

	token, err := session.ForceRefresh(ctx)
	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.Wrap(apperrors.ErrCodeUnauthorized, "Failed to refresh authentication", err)
		}
		return "", c.fail(ctx, appErr)
	}
	if token == "" {
		return "", apperrors.AuthRequired()
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.reqCtx.URL(path), body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key := IdempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	return resp.StatusCode, respBody, nil
}

// Do sends a raw request for payloads the JSON path cannot carry, such as
// multipart uploads and binary downloads. It applies the same credential
// precondition as Call but does not retry. The caller owns the response.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.reqCtx.URL(path), body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return nil, c.fail(ctx, apperrors.Remote(0, "Failed to reach backend", err))
	}
	return resp, nil
}

type backendError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RemoteError builds the error for a non-2xx backend response, preferring
// the backend's own error text.
func RemoteError(status int, body []byte) *apperrors.AppError {
	var be backendError
	_ = json.Unmarshal(body, &be)

	message := be.Error
	if message == "" {
		message = be.Message
	}
	if message == "" {
		message = fmt.Sprintf("Request failed with status code %d", status)
	}
	return apperrors.Remote(status, message, nil)
}
