package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/catalog"
	"mcprelay/internal/infra/telemetry"
)

const (
	serverName    = "mcprelay"
	serverVersion = "0.1.0"
)

// Gateway owns the local server instance. It registers the capability table
// once at construction and serves exactly one client connection over stdio.
// The table is read-only after startup, so invocation handling needs no
// locking discipline.
type Gateway struct {
	table      domain.CapabilityTable
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *telemetry.PrometheusMetrics
}

type Options struct {
	Table      domain.CapabilityTable
	Dispatcher *Dispatcher
	Metrics    *telemetry.PrometheusMetrics
	Logger     *zap.Logger
}

func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		table:      opts.Table,
		dispatcher: opts.Dispatcher,
		logger:     logger.Named("gateway"),
		metrics:    opts.Metrics,
	}
}

// Build constructs the server instance with every capability from the table
// registered. A capability category is only advertised when it has at least
// one member; a client must never see an empty category announced.
func (g *Gateway) Build() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		HasTools:     len(g.table.Tools) > 0,
		HasResources: len(g.table.Resources) > 0,
		HasPrompts:   len(g.table.Prompts) > 0,
	})

	for _, entry := range g.table.Tools {
		server.AddTool(&mcp.Tool{
			Name:        entry.LocalName,
			Description: entry.Description,
			InputSchema: catalog.TranslateParameters(entry.Parameters, g.logger),
		}, g.toolHandler(entry))
		g.logRegistered(entry)
	}

	for _, entry := range g.table.Resources {
		server.AddResource(&mcp.Resource{
			URI:  entry.RemoteKey,
			Name: resourceName(entry),
		}, g.resourceHandler(entry))
		g.logRegistered(entry)
	}

	for _, entry := range g.table.Prompts {
		server.AddPrompt(&mcp.Prompt{
			Name:        entry.LocalName,
			Description: entry.Description,
			Arguments:   promptArguments(entry.Arguments),
		}, g.promptHandler(entry))
		g.logRegistered(entry)
	}

	g.metrics.SetRegisteredCapabilities(string(domain.KindTool), len(g.table.Tools))
	g.metrics.SetRegisteredCapabilities(string(domain.KindResource), len(g.table.Resources))
	g.metrics.SetRegisteredCapabilities(string(domain.KindPrompt), len(g.table.Prompts))

	return server
}

// Run serves the single stdio client connection until ctx is canceled or the
// transport closes.
func (g *Gateway) Run(ctx context.Context) error {
	server := g.Build()
	g.logger.Info("gateway starting (stdio transport)",
		zap.Int("tools", len(g.table.Tools)),
		zap.Int("resources", len(g.table.Resources)),
		zap.Int("prompts", len(g.table.Prompts)),
	)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// Handlers are thin adapters: all forwarding behavior is the dispatcher
// applied to the capability record.

func (g *Gateway) toolHandler(entry domain.RegisteredCapability) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				// Tool failures surface as output, not protocol faults.
				result = &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{
						Text: fmt.Sprintf("Tool %q failed: %s", entry.LocalName, panicMessage(recovered)),
					}},
				}
				err = nil
			}
		}()
		return g.dispatcher.CallTool(ctx, entry, req.Params.Arguments), nil
	}
}

func (g *Gateway) resourceHandler(entry domain.RegisteredCapability) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (result *mcp.ReadResourceResult, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				result = nil
				err = domain.E(domain.CodeResourceReadFailure, "gateway.ReadResource", panicMessage(recovered), nil)
			}
		}()
		return g.dispatcher.ReadResource(ctx, entry)
	}
}

func (g *Gateway) promptHandler(entry domain.RegisteredCapability) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (result *mcp.GetPromptResult, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				result = nil
				err = domain.E(domain.CodePromptRetrievalFailure, "gateway.GetPrompt", panicMessage(recovered), nil)
			}
		}()
		rawArgs, err := marshalPromptArguments(req)
		if err != nil {
			return nil, domain.E(domain.CodePromptRetrievalFailure, "gateway.GetPrompt", "encode arguments", err)
		}
		return g.dispatcher.GetPrompt(ctx, entry, rawArgs)
	}
}

func (g *Gateway) logRegistered(entry domain.RegisteredCapability) {
	g.logger.Debug("capability registered",
		telemetry.EventField(telemetry.EventRegister),
		telemetry.KindField(string(entry.Kind)),
		telemetry.CapabilityField(entry.LocalName),
		telemetry.ServerIDField(entry.ServerID),
		telemetry.RemoteKeyField(entry.RemoteKey),
	)
}

func resourceName(entry domain.RegisteredCapability) string {
	if entry.DisplayName != "" {
		return entry.DisplayName
	}
	return entry.RemoteKey
}

func promptArguments(args []domain.PromptArgument) []*mcp.PromptArgument {
	if len(args) == 0 {
		return nil
	}
	out := make([]*mcp.PromptArgument, 0, len(args))
	for _, arg := range args {
		out = append(out, &mcp.PromptArgument{
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		})
	}
	return out
}

func marshalPromptArguments(req *mcp.GetPromptRequest) (json.RawMessage, error) {
	if req == nil || req.Params == nil || req.Params.Arguments == nil {
		return nil, nil
	}
	return json.Marshal(req.Params.Arguments)
}

func panicMessage(recovered any) string {
	return fmt.Sprintf("internal panic: %v", recovered)
}
