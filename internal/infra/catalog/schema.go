package catalog

import (
	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"mcprelay/internal/domain"
)

// TranslateParameters converts remote parameter descriptors into the input
// schema used for local request validation. Parameter names pass through
// verbatim; the remote call expects exact keys. The mapping is lossy by
// design: only string, number and boolean are representable, every other type
// tag falls through to an unconstrained schema.
func TranslateParameters(params []domain.ParameterDefinition, logger *zap.Logger) *jsonschema.Schema {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}
	for _, param := range params {
		field := translateParameter(param, logger)
		schema.Properties[param.Name] = field
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

func translateParameter(param domain.ParameterDefinition, logger *zap.Logger) *jsonschema.Schema {
	field := &jsonschema.Schema{Description: param.Description}
	switch param.Type {
	case domain.ParameterString:
		field.Type = "string"
	case domain.ParameterNumber:
		field.Type = "number"
	case domain.ParameterBoolean:
		field.Type = "boolean"
	default:
		// Unconstrained fallback, never an error.
		logger.Warn("unsupported parameter type, accepting any value",
			zap.String("parameter", param.Name),
			zap.String("type", string(param.Type)),
		)
	}
	return field
}
