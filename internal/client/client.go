package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bid2build/bid2build/internal/api/dto"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxResponseBytes     = 1 << 20
)

// Client talks to the registration and session endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client. The default has no timeout; bound calls through ctx.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register submits the payload as multipart/form-data. It succeeds only on a 2xx status whose
// body reports success; anything else is a *RegistrationError, and a failed round trip is a
// *TransportError.
func (c *Client) Register(ctx context.Context, p *Payload, idempotencyKey string) (*dto.RegisterResponse, error) {
	body, err := Assemble(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/register", body.Reader())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", body.ContentType)
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	var out dto.RegisterResponse
	if err := c.do(req, "register", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.LoginResponse, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out dto.LoginResponse
	if err := c.do(req, "login", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/api/auth/logout", token, nil)
	if err != nil {
		return err
	}
	var out dto.MessageResponse
	return c.do(req, "logout", &out)
}

// Me loads the account behind token.
func (c *Client) Me(ctx context.Context, token string) (*dto.MeResponse, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	var out dto.MeResponse
	if err := c.do(req, "me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and decodes a successful body into out, which must carry a "success" field.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	// A body that is not JSON, such as a proxy error page, is a failed exchange rather than an answer.
	var envelope struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && envelope.Success {
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	respErr := &ResponseError{Status: resp.StatusCode}
	var failure dto.ErrorResponse
	if json.Unmarshal(raw, &failure) == nil {
		respErr.Code = failure.Code
		respErr.Message = failure.Message
		respErr.Errors = failure.Errors
	}
	return respErr
}
