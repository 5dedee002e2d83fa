package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novadental/chairside/pkg/logging"
)

func newTestClassifier(llm LLMClient) *quickReplyClassifier {
	logger := logging.New("error")
	executor := newToolExecutor(newFakeEngine(), "test", logger)
	return newQuickReplyClassifier(llm, executor, "test-model", false, logger)
}

func TestQuickReplyYesNo(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "confirm_yes_no"}}}
	c := newTestClassifier(llm)

	buttons := c.Buttons(context.Background(), "Shall I book that for you?", nil)
	assert.Equal(t, []string{"Yes", "No"}, buttons)
}

func TestQuickReplyDoctorsFromLiveData(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "pick_doctor"}}}
	c := newTestClassifier(llm)

	buttons := c.Buttons(context.Background(), "Which doctor would you like to see?", nil)
	assert.Equal(t, []string{"Dr. Chen", "Dr. Okafor"}, buttons)
}

func TestQuickReplySlotsFromThisTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "pick_slot"}}}
	c := newTestClassifier(llm)

	buttons := c.Buttons(context.Background(), "I have 09:00 or 14:00 open.", []string{"09:00", "14:00"})
	assert.Equal(t, []string{"09:00", "14:00"}, buttons)
}

func TestQuickReplyNoneAndFailuresYieldNoButtons(t *testing.T) {
	cases := []struct {
		name string
		llm  *scriptedLLM
	}{
		{"classifier says none", &scriptedLLM{responses: []LLMResponse{{Text: "none"}}}},
		{"unknown label", &scriptedLLM{responses: []LLMResponse{{Text: "order_pizza"}}}},
		{"classifier error", &scriptedLLM{err: errors.New("throttled")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClassifier(tc.llm)
			assert.Nil(t, c.Buttons(context.Background(), "What's your name?", nil))
		})
	}
}

func TestQuickReplyDisabled(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "confirm_yes_no"}}}
	logger := logging.New("error")
	executor := newToolExecutor(newFakeEngine(), "test", logger)
	c := newQuickReplyClassifier(llm, executor, "test-model", true, logger)

	assert.Nil(t, c.Buttons(context.Background(), "Shall I book that?", nil))
	assert.Empty(t, llm.requests, "disabled classifier must not call the model")
}
