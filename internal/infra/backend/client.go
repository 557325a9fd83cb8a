package backend

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

	"go.uber.org/zap"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/telemetry"
)

const (
	headerTargetServer = "X-Target-Server-Id"
	headerRequestID    = "X-Request-Id"

	// maxErrorBodyBytes bounds how much of an upstream error body is kept as
	// detail.
	maxErrorBodyBytes = 4096
)

// ErrorKind tags a failed backend call at the HTTP boundary. Both the
// recoverable (tool) and fatal (resource/prompt) paths consume the same
// tagged type.
type ErrorKind string

const (
	ErrTimeout    ErrorKind = "timeout"
	ErrHTTPStatus ErrorKind = "http_status"
	ErrNetwork    ErrorKind = "network"
	ErrMalformed  ErrorKind = "malformed_response"
)

// CallError is the single error shape produced by the backend client.
type CallError struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case ErrHTTPStatus:
		if e.Detail != "" {
			return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Detail)
		}
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	case ErrTimeout:
		return fmt.Sprintf("backend call timeout: %s", e.Detail)
	case ErrMalformed:
		return fmt.Sprintf("malformed backend response: %s", e.Detail)
	default:
		return fmt.Sprintf("backend call failed: %s", e.Detail)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// Client talks to the remote capability backend. It is safe for concurrent
// use; it holds no mutable state beyond the embedded http.Client.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	toolTimeout time.Duration
	logger      *zap.Logger
}

type ClientOptions struct {
	BaseURL     string
	APIKey      string
	ToolTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	toolTimeout := opts.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = domain.DefaultToolTimeoutSeconds * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  httpClient,
		toolTimeout: toolTimeout,
		logger:      logger.Named("backend"),
	}
}

// ListServers fetches server definitions, optionally scoped to one server id.
// An empty serverID fetches all accessible servers.
func (c *Client) ListServers(ctx context.Context, serverID string) ([]domain.ServerDefinition, error) {
	query := url.Values{}
	if serverID != "" {
		query.Set("serverId", serverID)
	}
	var servers []domain.ServerDefinition
	if err := c.call(ctx, http.MethodGet, "/servers", query, nil, nil, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// ListResources fetches the resource definitions exposed by one server.
func (c *Client) ListResources(ctx context.Context, serverID string) ([]domain.ResourceDefinition, error) {
	query := url.Values{}
	if serverID != "" {
		query.Set("serverId", serverID)
	}
	var out struct {
		Resources []domain.ResourceDefinition `json:"resources"`
	}
	if err := c.call(ctx, http.MethodGet, "/resources/list", query, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// ListPrompts fetches the prompt definitions exposed by one server.
func (c *Client) ListPrompts(ctx context.Context, serverID string) ([]domain.PromptDefinition, error) {
	query := url.Values{}
	if serverID != "" {
		query.Set("serverId", serverID)
	}
	var out struct {
		Prompts []domain.PromptDefinition `json:"prompts"`
	}
	if err := c.call(ctx, http.MethodPost, "/prompts/list", query, nil, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Prompts, nil
}

// ExecuteTool forwards a tool invocation keyed by (serverID, slug). Arguments
// pass through verbatim as the request body. The call carries the bounded
// tool timeout.
func (c *Client) ExecuteTool(ctx context.Context, serverID, slug string, args json.RawMessage) (domain.ToolExecution, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.toolTimeout)
	defer cancel()

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	path := fmt.Sprintf("/servers/%s/tools/%s/execute", url.PathEscape(serverID), url.PathEscape(slug))
	var out domain.ToolExecution
	if err := c.call(callCtx, http.MethodPost, path, nil, nil, args, &out); err != nil {
		return domain.ToolExecution{}, err
	}
	return out, nil
}

// ReadResource forwards a resource read. The URI goes through verbatim as a
// query parameter; the owning server id travels as a header for backend-side
// authorization scoping. The returned value is the raw contents array,
// unmodified.
func (c *Client) ReadResource(ctx context.Context, serverID, uri string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("uri", uri)
	headers := http.Header{}
	headers.Set(headerTargetServer, serverID)

	var out struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := c.call(ctx, http.MethodGet, "/resources/read", query, headers, nil, &out); err != nil {
		return nil, err
	}
	return out.Contents, nil
}

// GetPrompt forwards a prompt retrieval. The response shape varies between
// backends (object or bare messages array) and is returned raw for the
// caller to normalize.
func (c *Client) GetPrompt(ctx context.Context, serverID, name string, args map[string]any) (json.RawMessage, error) {
	query := url.Values{}
	if serverID != "" {
		query.Set("serverId", serverID)
	}
	body := map[string]any{
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}
	var out json.RawMessage
	if err := c.call(ctx, http.MethodPost, "/prompts/get", query, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one JSON request/response round trip. Every failure comes
// back as a *CallError; no retries are attempted.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, headers http.Header, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &CallError{Kind: ErrMalformed, Detail: "encode request body", Err: err}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &CallError{Kind: ErrNetwork, Detail: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	requestID, _ := telemetry.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = telemetry.NewRequestID()
	}
	req.Header.Set(headerRequestID, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &CallError{
			Kind:   ErrHTTPStatus,
			Status: resp.StatusCode,
			Detail: strings.TrimSpace(string(detail)),
		}
	}

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &CallError{Kind: ErrMalformed, Detail: "decode response body", Err: err}
	}
	return nil
}

func classifyTransportError(err error) *CallError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &CallError{Kind: ErrTimeout, Detail: "deadline exceeded", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &CallError{Kind: ErrTimeout, Detail: netErr.Error(), Err: err}
	default:
		return &CallError{Kind: ErrNetwork, Detail: err.Error(), Err: err}
	}
}
