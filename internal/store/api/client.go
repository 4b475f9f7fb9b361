// Package api is the HTTP implementation of the bills resource.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"billed/internal/core"
	"billed/internal/store"
)

const maxErrorBody = 4 << 10

// TokenSource returns the bearer token for the next request, or "".
type TokenSource func() string

type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   TokenSource
}

var _ store.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{baseURL: u, http: newHTTPClient()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient creates a pooled HTTP client with bounded timeouts.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) Bills() store.Bills {
	return &bills{client: c}
}

// Credentials are posted to /auth/login.
type Credentials struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Type     core.UserType `json:"type"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	var out struct {
		JWT string `json:"jwt"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body), "application/json", &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if out.JWT == "" {
		return "", errors.New("login: empty token in response")
	}
	return out.JWT, nil
}

type bills struct {
	client *Client
}

func (b *bills) Create(ctx context.Context, req store.CreateRequest) (core.UploadResult, error) {
	if req.Data == nil {
		return core.UploadResult{}, errors.New("create bill: missing form data")
	}
	body, multipartType, err := req.Data.Encode()
	if err != nil {
		return core.UploadResult{}, fmt.Errorf("create bill: %w", err)
	}
	contentType := "application/json"
	if req.Headers.NoContentType {
		contentType = multipartType
	}
	var out core.UploadResult
	if err := b.client.do(ctx, http.MethodPost, "/bills", body, contentType, &out); err != nil {
		return core.UploadResult{}, fmt.Errorf("create bill: %w", err)
	}
	return out, nil
}

func (b *bills) Update(ctx context.Context, req store.UpdateRequest) (core.Bill, error) {
	body, err := json.Marshal(req.Data)
	if err != nil {
		return core.Bill{}, fmt.Errorf("encode bill: %w", err)
	}
	var out core.Bill
	path := "/bills/" + url.PathEscape(req.Selector)
	if err := b.client.do(ctx, http.MethodPatch, path, bytes.NewReader(body), "application/json", &out); err != nil {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", req.Selector, err)
	}
	return out, nil
}

func (b *bills) List(ctx context.Context) ([]core.Bill, error) {
	var out []core.Bill
	if err := b.client.do(ctx, http.MethodGet, "/bills", nil, "", &out); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &store.APIError{Status: resp.StatusCode, Message: msg}
}
