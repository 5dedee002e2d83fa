package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionTTL bounds how long a chat session survives without activity. The
// Redis history is the only conversational memory; expiry means the patient
// starts fresh.
const sessionTTL = 24 * time.Hour

// maxHistoryMessages caps replayed context so long sessions stay within the
// model's window. Older turns simply fall off.
const maxHistoryMessages = 60

type historyStore struct {
	redis *redis.Client
}

func newHistoryStore(client *redis.Client) *historyStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &historyStore{redis: client}
}

func (s *historyStore) Save(ctx context.Context, sessionID string, history []ChatMessage) error {
	ctx, span := conversationTracer.Start(ctx, "conversation.save_history")
	defer span.End()

	if len(history) > maxHistoryMessages {
		history = trimHistory(history, maxHistoryMessages)
	}

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

// Load returns the stored history, or an empty one for a new or expired
// session.
func (s *historyStore) Load(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("chat:session:%s", id)
}

// trimHistory drops the oldest turns but never starts the window on a tool
// result, which would orphan it from its tool call.
func trimHistory(history []ChatMessage, max int) []ChatMessage {
	start := len(history) - max
	for start < len(history) && history[start].Role == ChatRoleTool {
		start++
	}
	return history[start:]
}
