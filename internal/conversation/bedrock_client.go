package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient on the Bedrock Converse API,
// including native tool use.
type BedrockLLMClient struct {
	api bedrockConverseAPI
}

func NewBedrockLLMClient(api bedrockConverseAPI) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api}
}

var _ LLMClient = (*BedrockLLMClient)(nil)

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted, err := bedrockMessage(msg)
		if err != nil {
			return LLMResponse{}, err
		}
		if converted == nil {
			// System turns were folded into systemBlocks by the caller;
			// anything empty is dropped.
			continue
		}
		messages = append(messages, *converted)
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = bedrockToolConfig(req.Tools)
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}
	return bedrockDecodeOutput(out)
}

func bedrockMessage(msg ChatMessage) (*brtypes.Message, error) {
	switch msg.Role {
	case ChatRoleUser:
		if strings.TrimSpace(msg.Content) == "" {
			return nil, nil
		}
		return &brtypes.Message{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: msg.Content}},
		}, nil

	case ChatRoleAssistant:
		var content []brtypes.ContentBlock
		if strings.TrimSpace(msg.Content) != "" {
			content = append(content, &brtypes.ContentBlockMemberText{Value: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			content = append(content, &brtypes.ContentBlockMemberToolUse{
				Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(call.ID),
					Name:      aws.String(call.Name),
					Input:     document.NewLazyDocument(call.Arguments),
				},
			})
		}
		if len(content) == 0 {
			return nil, nil
		}
		return &brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: content}, nil

	case ChatRoleTool:
		// Tool results ride on a user-role message per the Converse contract.
		content := make([]brtypes.ContentBlock, 0, len(msg.ToolResults))
		for _, result := range msg.ToolResults {
			status := brtypes.ToolResultStatusSuccess
			if result.IsError {
				status = brtypes.ToolResultStatusError
			}
			content = append(content, &brtypes.ContentBlockMemberToolResult{
				Value: brtypes.ToolResultBlock{
					ToolUseId: aws.String(result.CallID),
					Status:    status,
					Content: []brtypes.ToolResultContentBlock{
						&brtypes.ToolResultContentBlockMemberJson{
							Value: document.NewLazyDocument(result.Content),
						},
					},
				},
			})
		}
		if len(content) == 0 {
			return nil, nil
		}
		return &brtypes.Message{Role: brtypes.ConversationRoleUser, Content: content}, nil

	default:
		return nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
	}
}

func bedrockToolConfig(tools []ToolSpec) *brtypes.ToolConfiguration {
	converted := make([]brtypes.Tool, 0, len(tools))
	for _, tool := range tools {
		converted = append(converted, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(tool.InputSchema),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: converted}
}

func bedrockDecodeOutput(out *bedrockruntime.ConverseOutput) (LLMResponse, error) {
	if out == nil {
		return LLMResponse{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return LLMResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}

	resp := LLMResponse{StopReason: string(out.StopReason)}
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(v.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args := map[string]any{}
			if v.Value.Input != nil {
				if err := v.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
					return LLMResponse{}, fmt.Errorf("conversation: decode tool input: %w", err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        aws.ToString(v.Value.ToolUseId),
				Name:      aws.ToString(v.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Text = strings.TrimSpace(text.String())

	if resp.Text == "" && len(resp.ToolCalls) == 0 {
		return LLMResponse{}, errors.New("conversation: bedrock response contained no text or tool calls")
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
