package catalog

import (
	"go.uber.org/zap"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/telemetry"
)

// Builder turns fetched server definitions into the immutable capability
// table. Entry order follows the order definitions were fetched in; the same
// definitions always produce the same table.
type Builder struct {
	scoped bool
	logger *zap.Logger
}

func NewBuilder(scoped bool, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		scoped: scoped,
		logger: logger.Named("catalog"),
	}
}

// Build produces the capability table for the given servers. Entries whose
// sanitized name is empty are skipped and logged, never fatal. A duplicate
// local name (possible after truncation) skips the later entry; shadowing an
// already registered capability would break the uniqueness invariant.
func (b *Builder) Build(servers []domain.ServerDefinition) domain.CapabilityTable {
	var table domain.CapabilityTable
	seenTools := make(map[string]struct{})
	seenResources := make(map[string]struct{})
	seenPrompts := make(map[string]struct{})

	for _, server := range servers {
		for _, tool := range server.Tools {
			name := b.toolName(server.ID, tool)
			if name == "" {
				b.logger.Warn("skipping tool with empty sanitized name",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.ServerIDField(server.ID),
					zap.String("tool", tool.Name),
				)
				continue
			}
			if _, dup := seenTools[name]; dup {
				b.logger.Warn("skipping tool with colliding local name",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.CapabilityField(name),
					telemetry.ServerIDField(server.ID),
					zap.String("slug", tool.Slug),
				)
				continue
			}
			seenTools[name] = struct{}{}
			table.Tools = append(table.Tools, domain.RegisteredCapability{
				LocalName:   name,
				Kind:        domain.KindTool,
				ServerID:    server.ID,
				RemoteKey:   tool.Slug,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}

		for _, resource := range server.Resources {
			if resource.URI == "" {
				b.logger.Warn("skipping resource without uri",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.ServerIDField(server.ID),
					zap.String("resource", resource.Name),
				)
				continue
			}
			if _, dup := seenResources[resource.URI]; dup {
				b.logger.Warn("skipping resource with duplicate uri",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.ServerIDField(server.ID),
					zap.String("uri", resource.URI),
				)
				continue
			}
			seenResources[resource.URI] = struct{}{}
			table.Resources = append(table.Resources, domain.RegisteredCapability{
				LocalName:   resource.URI,
				Kind:        domain.KindResource,
				ServerID:    server.ID,
				RemoteKey:   resource.URI,
				DisplayName: resource.Name,
			})
		}

		for _, prompt := range server.Prompts {
			name := b.promptName(server.ID, prompt)
			if name == "" {
				b.logger.Warn("skipping prompt with empty sanitized name",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.ServerIDField(server.ID),
					zap.String("prompt", prompt.Name),
				)
				continue
			}
			if _, dup := seenPrompts[name]; dup {
				b.logger.Warn("skipping prompt with colliding local name",
					telemetry.EventField(telemetry.EventRegisterSkipped),
					telemetry.CapabilityField(name),
					telemetry.ServerIDField(server.ID),
				)
				continue
			}
			seenPrompts[name] = struct{}{}
			table.Prompts = append(table.Prompts, domain.RegisteredCapability{
				LocalName:   name,
				Kind:        domain.KindPrompt,
				ServerID:    server.ID,
				RemoteKey:   prompt.Name,
				Description: prompt.Description,
				Arguments:   prompt.Arguments,
			})
		}
	}

	return table
}

func (b *Builder) toolName(serverID string, tool domain.ToolDefinition) string {
	if b.scoped {
		return ScopedName(tool)
	}
	return UnscopedName(serverID, tool)
}

func (b *Builder) promptName(serverID string, prompt domain.PromptDefinition) string {
	if b.scoped {
		return Sanitize(prompt.Name)
	}
	return truncateName(Sanitize(serverID) + "_" + Sanitize(prompt.Name))
}
