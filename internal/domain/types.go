package domain

// ParameterType is the primitive type tag carried by a remote parameter
// descriptor. Anything outside the known set maps to ParameterUnknown.
type ParameterType string

const (
	ParameterString  ParameterType = "string"
	ParameterNumber  ParameterType = "number"
	ParameterBoolean ParameterType = "boolean"
	ParameterUnknown ParameterType = "unknown"
)

// ParameterDefinition describes one tool parameter as returned by the backend.
type ParameterDefinition struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        ParameterType `json:"type,omitempty"`
	Required    bool          `json:"required"`
}

// ToolDefinition is a remote tool. Slug is the stable invocation key, unique
// within its server; Name is the human label and is subject to sanitization
// before local registration.
type ToolDefinition struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Slug        string                `json:"slug"`
	Description string                `json:"description,omitempty"`
	Parameters  []ParameterDefinition `json:"parameters,omitempty"`
}

// ResourceDefinition is a remote resource. URI doubles as the local
// registration key and the remote read key.
type ResourceDefinition struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// PromptArgument describes one prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptDefinition is a remote prompt.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// ServerDefinition is one backend server and everything it exposes. Identity
// is ID, assigned by the backend; definitions are immutable once fetched.
type ServerDefinition struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Tools       []ToolDefinition     `json:"tools,omitempty"`
	Resources   []ResourceDefinition `json:"resources,omitempty"`
	Prompts     []PromptDefinition   `json:"prompts,omitempty"`
}

// CapabilityKind discriminates the three capability categories.
type CapabilityKind string

const (
	KindTool     CapabilityKind = "tool"
	KindResource CapabilityKind = "resource"
	KindPrompt   CapabilityKind = "prompt"
)

// RegisteredCapability binds a local capability name to the remote call that
// backs it. ServerID plus RemoteKey are sufficient to reconstruct the exact
// remote call without re-fetching definitions.
//
// For tools RemoteKey is the slug, for resources the URI, for prompts the
// prompt name.
type RegisteredCapability struct {
	LocalName   string                `json:"localName"`
	Kind        CapabilityKind        `json:"kind"`
	ServerID    string                `json:"serverId"`
	RemoteKey   string                `json:"remoteKey"`
	DisplayName string                `json:"displayName,omitempty"`
	Description string                `json:"description,omitempty"`
	Parameters  []ParameterDefinition `json:"parameters,omitempty"`
	Arguments   []PromptArgument      `json:"arguments,omitempty"`
}

// CapabilityTable is the immutable set of capabilities built once at startup
// and handed to the transport layer by reference. Entry order is fetch order;
// no sorting is applied.
type CapabilityTable struct {
	Tools     []RegisteredCapability `json:"tools,omitempty"`
	Resources []RegisteredCapability `json:"resources,omitempty"`
	Prompts   []RegisteredCapability `json:"prompts,omitempty"`
}

// IsEmpty reports whether no capability of any kind was registered.
func (t CapabilityTable) IsEmpty() bool {
	return len(t.Tools) == 0 && len(t.Resources) == 0 && len(t.Prompts) == 0
}

// ToolExecution is the remote envelope for a tool call. IsError defaults to
// false when the backend omits it.
type ToolExecution struct {
	Result  string `json:"result"`
	IsError bool   `json:"isError"`
}

// PromptResult is the normalized remote prompt payload.
type PromptResult struct {
	Description string `json:"description,omitempty"`
	Messages    []any  `json:"messages"`
}
