package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API with
// function calling.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

var _ LLMClient = (*GeminiLLMClient)(nil)

func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.TrimSpace(strings.Join(req.System, "\n\n"))
		if systemText != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	if len(req.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  geminiSchema(tool.InputSchema),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini requires at least one message")
	}

	cs := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		if content := geminiContent(msg); content != nil {
			cs.History = append(cs.History, content)
		}
	}

	last := req.Messages[len(req.Messages)-1]
	parts := geminiParts(last)
	if len(parts) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini last message is empty")
	}

	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned empty content")
	}

	result := LLMResponse{StopReason: candidate.FinishReason.String()}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			// Gemini does not issue call IDs; the function name serves as the
			// correlation key.
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        v.Name,
				Name:      v.Name,
				Arguments: v.Args,
			})
		}
	}
	result.Text = strings.TrimSpace(text.String())

	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiContent(msg ChatMessage) *genai.Content {
	parts := geminiParts(msg)
	if len(parts) == 0 {
		return nil
	}
	role := "user"
	if msg.Role == ChatRoleAssistant {
		role = "model"
	}
	return &genai.Content{Role: role, Parts: parts}
}

func geminiParts(msg ChatMessage) []genai.Part {
	var parts []genai.Part
	if strings.TrimSpace(msg.Content) != "" && msg.Role != ChatRoleSystem {
		parts = append(parts, genai.Text(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Arguments})
	}
	for _, result := range msg.ToolResults {
		parts = append(parts, genai.FunctionResponse{Name: result.Name, Response: result.Content})
	}
	return parts
}

// geminiSchema converts the JSON Schema object shared with Bedrock into the
// typed schema Gemini expects. Only the subset the tool definitions use is
// mapped.
func geminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: geminiType(stringAt(schema, "type"))}
	out.Description = stringAt(schema, "description")

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = geminiSchema(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	if required, ok := schema["required"].([]string); ok {
		out.Required = required
	} else if rawRequired, ok := schema["required"].([]any); ok {
		for _, r := range rawRequired {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if enum, ok := schema["enum"].([]string); ok {
		out.Enum = enum
	} else if rawEnum, ok := schema["enum"].([]any); ok {
		for _, e := range rawEnum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func stringAt(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
