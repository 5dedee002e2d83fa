package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/novadental/chairside/pkg/logging"
)

// Quick-reply categories. A secondary low-temperature model call labels the
// assistant's final utterance with one of these; buttons are then rendered
// from live clinic data, never from model output.
const (
	replyMainMenu       = "main_menu"
	replyPickDoctor     = "pick_doctor"
	replyPickService    = "pick_service"
	replyPickDate       = "pick_date"
	replyPickSlot       = "pick_slot"
	replyConfirmYesNo   = "confirm_yes_no"
	replyNewVsReturning = "new_vs_returning"
	replyPostCompletion = "post_completion"
	replyNone           = "none"
)

var replyCategories = map[string]bool{
	replyMainMenu:       true,
	replyPickDoctor:     true,
	replyPickService:    true,
	replyPickDate:       true,
	replyPickSlot:       true,
	replyConfirmYesNo:   true,
	replyNewVsReturning: true,
	replyPostCompletion: true,
	replyNone:           true,
}

const classifierPrompt = `You label the last message of a dental clinic assistant so a UI can show quick-reply buttons.
Answer with exactly one of these labels and nothing else:
main_menu, pick_doctor, pick_service, pick_date, pick_slot, confirm_yes_no, new_vs_returning, post_completion, none.

Guidance:
- main_menu: greeting or "how can I help"
- pick_doctor: asking which doctor
- pick_service: asking which service or treatment
- pick_date: asking for a date or day
- pick_slot: offering specific times to choose from
- confirm_yes_no: asking for a yes/no confirmation
- new_vs_returning: asking whether the patient has visited before
- post_completion: a booking/cancellation was just confirmed
- none: anything else (questions needing free-form answers, apologies, names, phone numbers)`

// quickReplyClassifier turns the assistant's reply into tappable buttons.
// Every failure path degrades to no buttons; the text answer always stands on
// its own.
type quickReplyClassifier struct {
	llm      LLMClient
	executor *toolExecutor
	modelID  string
	disabled bool
	logger   *logging.Logger
}

func newQuickReplyClassifier(llm LLMClient, executor *toolExecutor, modelID string, disabled bool, logger *logging.Logger) *quickReplyClassifier {
	return &quickReplyClassifier{
		llm:      llm,
		executor: executor,
		modelID:  modelID,
		disabled: disabled,
		logger:   logger,
	}
}

// Buttons classifies assistantText and renders the matching button set.
// slotOptions carries times offered this turn (from check_availability
// results), used for pick_slot.
func (q *quickReplyClassifier) Buttons(ctx context.Context, assistantText string, slotOptions []string) []string {
	if q.disabled || strings.TrimSpace(assistantText) == "" {
		return nil
	}

	category := q.classify(ctx, assistantText)
	if category == replyNone || category == "" {
		return nil
	}
	return q.render(ctx, category, slotOptions)
}

func (q *quickReplyClassifier) classify(ctx context.Context, assistantText string) string {
	resp, err := q.llm.Complete(ctx, LLMRequest{
		Model:       q.modelID,
		System:      []string{classifierPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: assistantText}},
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil {
		q.logger.Warn("quick-reply classification failed", "error", err)
		return replyNone
	}

	label := strings.ToLower(strings.TrimSpace(resp.Text))
	if !replyCategories[label] {
		q.logger.Warn("quick-reply classifier returned unknown label", "label", label)
		return replyNone
	}
	return label
}

func (q *quickReplyClassifier) render(ctx context.Context, category string, slotOptions []string) []string {
	switch category {
	case replyMainMenu:
		return []string{"Book an appointment", "Reschedule", "Cancel", "Ask a question"}
	case replyConfirmYesNo:
		return []string{"Yes", "No"}
	case replyNewVsReturning:
		return []string{"I'm a new patient", "I've been here before"}
	case replyPostCompletion:
		return []string{"Book another appointment", "That's all, thanks"}
	case replyPickSlot:
		if len(slotOptions) > 6 {
			slotOptions = slotOptions[:6]
		}
		return slotOptions
	}

	options, err := q.executor.clinicOptions(ctx)
	if err != nil {
		q.logger.Warn("quick-reply options lookup failed", "error", err)
		return nil
	}
	switch category {
	case replyPickDoctor:
		if doctors, ok := options["doctors"].([]string); ok {
			return doctors
		}
	case replyPickService:
		if services, ok := options["services"].([]string); ok {
			return services
		}
	case replyPickDate:
		days, ok := options["nextWorkingDays"].([]string)
		if !ok {
			return nil
		}
		labels := make([]string, 0, len(days))
		for _, day := range days {
			if t, err := time.Parse("2006-01-02", day); err == nil {
				labels = append(labels, t.Format("Mon Jan 2"))
			}
		}
		return labels
	}
	return nil
}
