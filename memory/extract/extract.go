// Package extract distills raw conversation text into discrete facts worth
// remembering, using Claude with a forced tool call so the output is always
// structured.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/unimem/unimem/memory"
)

// DefaultModel keeps extraction on a small fast model.
const DefaultModel = anthropic.Model("claude-3-5-haiku-latest")

const toolName = "store_facts"

const systemPrompt = `You extract discrete, self-contained facts from text so they can be stored as long-term memories.
Each fact must stand alone without the surrounding context. Rewrite pronouns into concrete subjects.
Skip greetings, filler, and anything too transient to be worth remembering.
If the text contains nothing memorable, call the tool with an empty list.`

// Extractor asks Claude to break content into memorable facts.
type Extractor struct {
	client anthropic.Client
	model  anthropic.Model
}

var _ memory.FactExtractor = (*Extractor)(nil)

// Option configures the extractor.
type Option func(*Extractor)

// WithModel overrides the extraction model.
func WithModel(model string) Option {
	return func(e *Extractor) {
		e.model = anthropic.Model(model)
	}
}

// New creates an Extractor using the given Anthropic client.
func New(client anthropic.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// storeFactsInput mirrors the tool's input schema.
type storeFactsInput struct {
	Facts []string `json:"facts"`
}

// Extract returns the facts found in content. An empty slice means the
// model judged nothing worth keeping; callers decide whether to store the
// raw content instead.
func (e *Extractor) Extract(ctx context.Context, content string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	schema := ObjectSchema(map[string]interface{}{
		"facts": ArrayProperty(
			"Self-contained facts extracted from the text, one per entry.",
			StringProperty("A single fact."),
		),
	}, "facts")

	params := anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        toolName,
					Description: anthropic.String("Store the facts extracted from the text."),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: schema["properties"],
						Required:   []string{"facts"},
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: toolName},
		},
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("extract: claude API error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != toolName {
			continue
		}
		return parseFacts(block.Input)
	}
	return nil, fmt.Errorf("extract: response contained no %s call", toolName)
}

// parseFacts decodes the tool input and drops blank entries.
func parseFacts(input json.RawMessage) ([]string, error) {
	var parsed storeFactsInput
	if err := json.Unmarshal(input, &parsed); err != nil {
		return nil, fmt.Errorf("extract: parse tool input: %w", err)
	}
	facts := make([]string, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		f = strings.TrimSpace(f)
		if f != "" {
			facts = append(facts, f)
		}
	}
	return facts, nil
}
