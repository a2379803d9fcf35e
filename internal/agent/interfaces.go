package agent

import (
	"context"
	"encoding/json"
)

// Schema describes the JSON a structured call should return. Providers that support
// schema-constrained output receive it natively; the rest get it rendered into the system prompt.
type Schema struct {
	Name       string
	Definition json.RawMessage
}

type AIClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteJSONWithSystem asks for JSON output; schema may be nil.
	CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error)
}
