package conversation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/novadental/chairside/internal/observability/metrics"
	"github.com/novadental/chairside/pkg/logging"
)

// maxDispatchRounds is the hard ceiling on model round-trips per patient
// message. Hitting it yields a per-language apology instead of an error.
const defaultMaxDispatchRounds = 8

// dispatcher runs the tool-calling loop for one patient message: call the
// model, execute any requested tools sequentially, feed results back, repeat.
// A terminal tool gets exactly one closing model call.
type dispatcher struct {
	llm       LLMClient
	executor  *toolExecutor
	modelID   string
	maxTokens int32
	maxRounds int
	provider  string
	logger    *logging.Logger
}

type dispatchResult struct {
	Text    string
	History []ChatMessage
	Outcome *BookingOutcome
	Rounds  int
}

func newDispatcher(llm LLMClient, executor *toolExecutor, modelID string, maxTokens int32, maxRounds int, provider string, logger *logging.Logger) *dispatcher {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if executor == nil {
		panic("conversation: tool executor cannot be nil")
	}
	if maxRounds <= 0 {
		maxRounds = defaultMaxDispatchRounds
	}
	return &dispatcher{
		llm:       llm,
		executor:  executor,
		modelID:   modelID,
		maxTokens: maxTokens,
		maxRounds: maxRounds,
		provider:  provider,
		logger:    logger,
	}
}

func (d *dispatcher) run(ctx context.Context, system []string, history []ChatMessage, language string) (dispatchResult, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.dispatch")
	defer span.End()

	var outcome *BookingOutcome
	committed := false

	rounds := 0
	for ; rounds < d.maxRounds; rounds++ {
		resp, err := d.complete(ctx, system, history)
		if err != nil {
			span.RecordError(err)
			return dispatchResult{}, fmt.Errorf("conversation: model call failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 || committed {
			// Plain text ends the turn. After a committed terminal tool the
			// closing call is final even if the model asks for more tools.
			if committed && len(resp.ToolCalls) > 0 {
				d.logger.Warn("model requested tools after terminal commit, ignoring",
					"tools", toolNames(resp.ToolCalls))
			}
			text := resp.Text
			if text == "" {
				text = packFor(language).Apology
			}
			history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: text})
			metrics.DispatchRounds.Observe(float64(rounds + 1))
			span.SetAttributes(attribute.Int("chairside.dispatch_rounds", rounds+1))
			return dispatchResult{Text: text, History: history, Outcome: outcome, Rounds: rounds + 1}, nil
		}

		history = append(history, ChatMessage{
			Role:      ChatRoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		// Sequential execution: each result lands in history before the
		// model sees the next round. At most one terminal tool commits per
		// turn; once one has, the rest of the batch is refused unexecuted so
		// a model emitting two booking calls cannot double-book.
		results := make([]ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if committed {
				d.logger.Warn("tool call skipped after terminal commit",
					"tool", call.Name, "terminal", terminalTools[call.Name])
				results = append(results, ToolResult{
					CallID: call.ID,
					Name:   call.Name,
					Content: map[string]any{
						"error":   "tool_execution_failed",
						"message": "a booking action already completed this turn",
					},
					IsError: true,
				})
				continue
			}
			result, callOutcome := d.executor.execute(ctx, call)
			results = append(results, result)
			if callOutcome != nil {
				outcome = callOutcome
				committed = true
			}
		}
		history = append(history, ChatMessage{Role: ChatRoleTool, ToolResults: results})
	}

	// Ceiling reached without a final text.
	d.logger.Error("dispatch loop exhausted", "rounds", rounds)
	metrics.DispatchRounds.Observe(float64(rounds))
	text := packFor(language).Apology
	history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: text})
	return dispatchResult{Text: text, History: history, Outcome: outcome, Rounds: rounds}, nil
}

func (d *dispatcher) complete(ctx context.Context, system []string, history []ChatMessage) (LLMResponse, error) {
	start := time.Now()
	resp, err := d.llm.Complete(ctx, LLMRequest{
		Model:       d.modelID,
		System:      system,
		Messages:    history,
		Tools:       allTools(),
		MaxTokens:   d.maxTokens,
		Temperature: 0.3,
	})
	metrics.LLMRequestDuration.WithLabelValues(d.provider).Observe(time.Since(start).Seconds())
	return resp, err
}

func toolNames(calls []ToolCall) []string {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}
	return names
}
