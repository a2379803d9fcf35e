package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// OutlineItem is one chapter stub returned by outline generation.
type OutlineItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Gateway is the typed surface the story engine uses. Every method returns either a value or
// an *Error whose Kind says what went wrong.
type Gateway struct {
	client AIClient
	logger *slog.Logger
}

func NewGateway(client AIClient) *Gateway {
	return &Gateway{
		client: client,
		logger: slog.Default().With("component", "gateway"),
	}
}

// GenerateText returns trimmed free text.
func (g *Gateway) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	start := time.Now()
	out, err := g.client.CompleteWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return "", asGatewayError("generate text", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", newError(KindEmpty, "generate text", errors.New("model returned no text"))
	}

	g.logger.Debug("text generated",
		"prompt_length", len(prompt),
		"response_length", len(out),
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// GenerateOutline requests count chapter stubs and returns at most count of them.
func (g *Gateway) GenerateOutline(ctx context.Context, systemPrompt, prompt string, count int) ([]OutlineItem, error) {
	const op = "generate outline"

	raw, err := g.client.CompleteJSONWithSystem(ctx, systemPrompt, prompt, OutlineSchema)
	if err != nil {
		return nil, asGatewayError(op, err)
	}

	items, err := NormalizeList(raw, "chapters", "outline")
	if err != nil {
		g.logger.Warn("outline response rejected", "error", err, "response_length", len(raw))
		return nil, err
	}

	outline := make([]OutlineItem, 0, min(len(items), count))
	for i, item := range items {
		if len(outline) == count {
			break
		}
		var oi OutlineItem
		if err := json.Unmarshal(item, &oi); err != nil {
			return nil, newError(KindShape, op, fmt.Errorf("item %d: %w", i, err))
		}
		oi.Title = strings.TrimSpace(oi.Title)
		oi.Summary = strings.TrimSpace(oi.Summary)
		outline = append(outline, oi)
	}
	if len(outline) == 0 {
		return nil, newError(KindEmpty, op, errors.New("model returned no chapters"))
	}

	g.logger.Debug("outline generated",
		"requested", count,
		"returned", len(items),
		"kept", len(outline))
	return outline, nil
}

// GenerateList requests a JSON list and decodes each item into T. Items that fail to decode
// are skipped; a response with no decodable items is a shape error.
func GenerateList[T any](ctx context.Context, g *Gateway, systemPrompt, prompt string, schema *Schema, keys ...string) ([]T, error) {
	const op = "generate list"

	raw, err := g.client.CompleteJSONWithSystem(ctx, systemPrompt, prompt, schema)
	if err != nil {
		return nil, asGatewayError(op, err)
	}

	items, err := NormalizeList(raw, keys...)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			g.logger.Debug("skipping undecodable list item", "error", err)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, newError(KindShape, op, errors.New("no decodable items"))
	}
	return out, nil
}

// GenerateObject requests a JSON object and decodes it into out.
func (g *Gateway) GenerateObject(ctx context.Context, systemPrompt, prompt string, schema *Schema, out any) error {
	raw, err := g.client.CompleteJSONWithSystem(ctx, systemPrompt, prompt, schema)
	if err != nil {
		return asGatewayError("generate object", err)
	}
	return DecodeObject(raw, out)
}

func asGatewayError(op string, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return newError(KindTransport, op, err)
}
