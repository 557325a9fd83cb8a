package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/backend"
	"mcprelay/internal/infra/telemetry"
)

// Dispatcher translates local invocations into remote calls and back. It is
// a pure function of the capability record and the input; all forwarding
// context lives in the record, not in per-registration closures.
type Dispatcher struct {
	client  *backend.Client
	logger  *zap.Logger
	metrics *telemetry.PrometheusMetrics
}

func NewDispatcher(client *backend.Client, metrics *telemetry.PrometheusMetrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		client:  client,
		logger:  logger.Named("dispatch"),
		metrics: metrics,
	}
}

// CallTool forwards a tool invocation. Arguments pass through unmodified;
// the local server already validated them against the registered schema.
// Remote failures never surface as protocol errors: they come back as a
// successful envelope with IsError set, so the client session continues.
func (d *Dispatcher) CallTool(ctx context.Context, entry domain.RegisteredCapability, args json.RawMessage) *mcp.CallToolResult {
	ctx, requestID := telemetry.EnsureRequestID(ctx)
	logger := d.logger.With(
		telemetry.CapabilityField(entry.LocalName),
		telemetry.ServerIDField(entry.ServerID),
		telemetry.RemoteKeyField(entry.RemoteKey),
		telemetry.RequestIDField(requestID),
	)

	start := time.Now()
	execution, err := d.client.ExecuteTool(ctx, entry.ServerID, entry.RemoteKey, args)
	d.metrics.ObserveForward(string(domain.KindTool), time.Since(start), err)
	if err != nil {
		logger.Warn("tool execution failed",
			telemetry.EventField(telemetry.EventForwardFailure),
			telemetry.DurationField(time.Since(start)),
			zap.Error(domain.Wrap(domain.CodeToolExecutionFailure, "gateway.CallTool", err)),
		)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: toolErrorMessage(entry, err)}},
		}
	}

	logger.Debug("tool execution completed",
		telemetry.EventField(telemetry.EventForwardSuccess),
		telemetry.DurationField(time.Since(start)),
		zap.Bool("isError", execution.IsError),
	)
	return &mcp.CallToolResult{
		IsError: execution.IsError,
		Content: []mcp.Content{&mcp.TextContent{Text: execution.Result}},
	}
}

// ReadResource forwards a resource read. Unlike tool calls there is no
// error-as-content convention for reads, so failures are re-raised as hard
// errors.
func (d *Dispatcher) ReadResource(ctx context.Context, entry domain.RegisteredCapability) (*mcp.ReadResourceResult, error) {
	const op = "gateway.ReadResource"

	ctx, _ = telemetry.EnsureRequestID(ctx)
	start := time.Now()
	contents, err := d.client.ReadResource(ctx, entry.ServerID, entry.RemoteKey)
	d.metrics.ObserveForward(string(domain.KindResource), time.Since(start), err)
	if err != nil {
		return nil, domain.E(domain.CodeResourceReadFailure, op,
			fmt.Sprintf("read %s: %s", entry.RemoteKey, err.Error()), err)
	}

	result := &mcp.ReadResourceResult{}
	if len(contents) > 0 {
		if err := json.Unmarshal(contents, &result.Contents); err != nil {
			return nil, domain.E(domain.CodeResourceReadFailure, op,
				fmt.Sprintf("read %s: malformed contents", entry.RemoteKey), err)
		}
	}
	return result, nil
}

// GetPrompt forwards a prompt retrieval. Arguments are defensively
// normalized before forwarding and the remote response is normalized into
// the description/messages shape. Failures are hard errors.
func (d *Dispatcher) GetPrompt(ctx context.Context, entry domain.RegisteredCapability, rawArgs json.RawMessage) (*mcp.GetPromptResult, error) {
	const op = "gateway.GetPrompt"

	ctx, _ = telemetry.EnsureRequestID(ctx)
	args, err := NormalizePromptArguments(rawArgs)
	if err != nil {
		return nil, domain.E(domain.CodePromptRetrievalFailure, op,
			fmt.Sprintf("prompt %s: invalid arguments", entry.RemoteKey), err)
	}

	start := time.Now()
	raw, err := d.client.GetPrompt(ctx, entry.ServerID, entry.RemoteKey, args)
	d.metrics.ObserveForward(string(domain.KindPrompt), time.Since(start), err)
	if err != nil {
		return nil, domain.E(domain.CodePromptRetrievalFailure, op,
			fmt.Sprintf("prompt %s: %s", entry.RemoteKey, err.Error()), err)
	}

	normalized := NormalizePromptResult(raw, entry.Description)
	result := &mcp.GetPromptResult{Description: normalized.Description}
	for _, message := range normalized.Messages {
		promptMessage, err := decodePromptMessage(message)
		if err != nil {
			return nil, domain.E(domain.CodePromptRetrievalFailure, op,
				fmt.Sprintf("prompt %s: malformed message", entry.RemoteKey), err)
		}
		result.Messages = append(result.Messages, promptMessage)
	}
	return result, nil
}

// NormalizePromptArguments unwraps the argument payload shapes observed in
// the wild: a JSON-encoded string is parsed, a params.arguments wrapper is
// unwrapped, and anything else must already be an object.
func NormalizePromptArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	for depth := 0; depth < 4; depth++ {
		switch typed := value.(type) {
		case nil:
			return nil, nil
		case string:
			// Some clients double-encode the argument object.
			var nested any
			if err := json.Unmarshal([]byte(typed), &nested); err != nil {
				return nil, fmt.Errorf("decode string-encoded arguments: %w", err)
			}
			value = nested
		case map[string]any:
			// Observed client quirk: arguments nested under params.arguments.
			if params, ok := typed["params"].(map[string]any); ok && len(typed) == 1 {
				if nested, ok := params["arguments"]; ok {
					value = nested
					continue
				}
			}
			return typed, nil
		default:
			return nil, fmt.Errorf("arguments must be an object, got %T", value)
		}
	}
	return nil, errors.New("arguments nested too deeply")
}

// NormalizePromptResult coerces the remote prompt payload into the
// description/messages shape. A bare array is treated as the messages list;
// an object keeps its own description, falling back to the definition's;
// anything else yields an empty messages list.
func NormalizePromptResult(raw json.RawMessage, fallbackDescription string) domain.PromptResult {
	result := domain.PromptResult{Description: fallbackDescription, Messages: []any{}}
	if len(raw) == 0 {
		return result
	}

	var asList []any
	if err := json.Unmarshal(raw, &asList); err == nil {
		result.Messages = asList
		return result
	}

	var asObject struct {
		Description string `json:"description"`
		Messages    []any  `json:"messages"`
	}
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return result
	}
	if asObject.Description != "" {
		result.Description = asObject.Description
	}
	if asObject.Messages != nil {
		result.Messages = asObject.Messages
	}
	return result
}

func decodePromptMessage(message any) (*mcp.PromptMessage, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	var promptMessage mcp.PromptMessage
	if err := json.Unmarshal(raw, &promptMessage); err != nil {
		return nil, err
	}
	return &promptMessage, nil
}

// toolErrorMessage builds the deterministic error text surfaced as tool
// output: the tool identity, the HTTP status when known, and a bounded
// detail string.
func toolErrorMessage(entry domain.RegisteredCapability, err error) string {
	var callErr *backend.CallError
	detail := err.Error()
	status := ""
	if errors.As(err, &callErr) {
		detail = callErr.Error()
		if callErr.Kind == backend.ErrHTTPStatus {
			status = fmt.Sprintf(" (HTTP %d)", callErr.Status)
		}
	}
	if len(detail) > domain.MaxErrorDetailLength {
		cut := domain.MaxErrorDetailLength
		// Never split a multibyte character at the cut point.
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut]
	}
	return fmt.Sprintf("Tool %q (%s) failed%s: %s", entry.LocalName, entry.RemoteKey, status, detail)
}
