package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/backend"
)

func testCapability() domain.RegisteredCapability {
	return domain.RegisteredCapability{
		LocalName: "Get_Weather",
		Kind:      domain.KindTool,
		ServerID:  "srv1",
		RemoteKey: "get-weather",
	}
}

func newTestDispatcher(t *testing.T, handler http.Handler, toolTimeout time.Duration) (*Dispatcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := backend.NewClient(backend.ClientOptions{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		ToolTimeout: toolTimeout,
		Logger:      zaptest.NewLogger(t),
	})
	return NewDispatcher(client, nil, zaptest.NewLogger(t)), srv
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestCallToolForwardsResult(t *testing.T) {
	var gotPath string
	var gotBody json.RawMessage
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := json.Marshal(map[string]any{"result": "sunny, 21C", "isError": false})
		raw := json.RawMessage{}
		_ = json.NewDecoder(r.Body).Decode(&raw)
		gotBody = raw
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}), 0)

	args := json.RawMessage(`{"city":"Oslo"}`)
	result := d.CallTool(context.Background(), testCapability(), args)

	assert.Equal(t, "/servers/srv1/tools/get-weather/execute", gotPath)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(gotBody))
	assert.False(t, result.IsError)
	assert.Equal(t, "sunny, 21C", textContent(t, result))
}

func TestCallToolPropagatesRemoteIsError(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"city not found","isError":true}`))
	}), 0)

	result := d.CallTool(context.Background(), testCapability(), nil)
	assert.True(t, result.IsError)
	assert.Equal(t, "city not found", textContent(t, result))
}

func TestCallToolHTTPFailureBecomesErrorContent(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "execution backend unavailable", http.StatusBadGateway)
	}), 0)

	result := d.CallTool(context.Background(), testCapability(), nil)

	require.True(t, result.IsError)
	text := textContent(t, result)
	assert.Contains(t, text, `"Get_Weather"`)
	assert.Contains(t, text, "get-weather")
	assert.Contains(t, text, "HTTP 502")
	assert.Contains(t, text, "execution backend unavailable")
}

func TestCallToolTimeoutBecomesErrorContent(t *testing.T) {
	release := make(chan struct{})
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 30*time.Millisecond)
	// Registered after the server's Close cleanup so it runs first: the
	// handler must be released before Close can wait out the connection.
	t.Cleanup(func() { close(release) })

	result := d.CallTool(context.Background(), testCapability(), nil)

	require.True(t, result.IsError)
	text := textContent(t, result)
	assert.Contains(t, text, "get-weather")
	assert.Contains(t, text, "timeout")
}

func TestToolErrorMessageTruncatesDetail(t *testing.T) {
	err := &backend.CallError{
		Kind:   backend.ErrHTTPStatus,
		Status: 500,
		Detail: strings.Repeat("x", 5000),
	}
	message := toolErrorMessage(testCapability(), err)
	assert.LessOrEqual(t, len(message), domain.MaxErrorDetailLength+200)
	assert.Contains(t, message, "HTTP 500")
}

func TestToolErrorMessageTruncatesOnRuneBoundary(t *testing.T) {
	callErr := &backend.CallError{Kind: backend.ErrNetwork}
	prefixLen := len(callErr.Error())
	// Place a multibyte character straddling the cut offset.
	callErr.Detail = strings.Repeat("a", domain.MaxErrorDetailLength-prefixLen-1) + "日日日"

	message := toolErrorMessage(testCapability(), callErr)
	assert.True(t, utf8.ValidString(message))
	assert.NotContains(t, message, "日", "straddling character is dropped, not split")
}

func TestReadResourceFailureIsHardError(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such resource", http.StatusNotFound)
	}), 0)

	entry := domain.RegisteredCapability{
		Kind:      domain.KindResource,
		ServerID:  "srv1",
		RemoteKey: "file:///notes.txt",
	}
	_, err := d.ReadResource(context.Background(), entry)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeResourceReadFailure))
	assert.Contains(t, err.Error(), "file:///notes.txt")
}

func TestReadResourceDecodesContents(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contents":[{"uri":"file:///notes.txt","text":"hello"}]}`))
	}), 0)

	entry := domain.RegisteredCapability{
		Kind:      domain.KindResource,
		ServerID:  "srv1",
		RemoteKey: "file:///notes.txt",
	}
	result, err := d.ReadResource(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "file:///notes.txt", result.Contents[0].URI)
	assert.Equal(t, "hello", result.Contents[0].Text)
}

func TestGetPromptFailureIsHardError(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown prompt", http.StatusNotFound)
	}), 0)

	entry := domain.RegisteredCapability{
		Kind:      domain.KindPrompt,
		ServerID:  "srv1",
		RemoteKey: "summarize",
	}
	_, err := d.GetPrompt(context.Background(), entry, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodePromptRetrievalFailure))
}

func TestGetPromptNormalizesAndDecodesMessages(t *testing.T) {
	var gotArgs map[string]any
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params struct {
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotArgs = body.Params.Arguments
		_, _ = w.Write([]byte(`{"description":"remote description","messages":[{"role":"user","content":{"type":"text","text":"summarize this"}}]}`))
	}), 0)

	entry := domain.RegisteredCapability{
		Kind:        domain.KindPrompt,
		ServerID:    "srv1",
		RemoteKey:   "summarize",
		Description: "local fallback",
	}
	// String-encoded argument object, as some clients send it.
	result, err := d.GetPrompt(context.Background(), entry, json.RawMessage(`"{\"topic\":\"go\"}"`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"topic": "go"}, gotArgs)
	assert.Equal(t, "remote description", result.Description)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mcp.Role("user"), result.Messages[0].Role)
	text, ok := result.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "summarize this", text.Text)
}

func TestNormalizePromptArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "null", raw: "null", want: nil},
		{name: "plain object", raw: `{"x":1}`, want: map[string]any{"x": float64(1)}},
		{name: "string-encoded object", raw: `"{\"x\":1}"`, want: map[string]any{"x": float64(1)}},
		{name: "params wrapper", raw: `{"params":{"arguments":{"x":1}}}`, want: map[string]any{"x": float64(1)}},
		{name: "string-encoded params wrapper", raw: `"{\"params\":{\"arguments\":{\"x\":1}}}"`, want: map[string]any{"x": float64(1)}},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "number", raw: `42`, wantErr: true},
		{name: "string not JSON", raw: `"hello"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			got, err := NormalizePromptArguments(raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePromptResult(t *testing.T) {
	t.Run("bare array becomes messages", func(t *testing.T) {
		result := NormalizePromptResult(json.RawMessage(`[{"role":"user"}]`), "fallback")
		assert.Equal(t, "fallback", result.Description)
		require.Len(t, result.Messages, 1)
	})

	t.Run("object keeps its own description", func(t *testing.T) {
		result := NormalizePromptResult(json.RawMessage(`{"description":"own","messages":[]}`), "fallback")
		assert.Equal(t, "own", result.Description)
		assert.Empty(t, result.Messages)
	})

	t.Run("object without description falls back", func(t *testing.T) {
		result := NormalizePromptResult(json.RawMessage(`{"messages":[{"role":"user"}]}`), "fallback")
		assert.Equal(t, "fallback", result.Description)
		require.Len(t, result.Messages, 1)
	})

	t.Run("garbage yields empty messages", func(t *testing.T) {
		result := NormalizePromptResult(json.RawMessage(`42`), "fallback")
		assert.Equal(t, "fallback", result.Description)
		assert.Empty(t, result.Messages)
	})

	t.Run("empty payload yields empty messages", func(t *testing.T) {
		result := NormalizePromptResult(nil, "fallback")
		assert.Equal(t, "fallback", result.Description)
		assert.Empty(t, result.Messages)
	})
}
