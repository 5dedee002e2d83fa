package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/novadental/chairside/internal/observability/metrics"
	"github.com/novadental/chairside/pkg/logging"
)

var conversationTracer = otel.Tracer("chairside.internal.conversation")

// Reply is one assistant turn as delivered to the patient.
type Reply struct {
	SessionID string          `json:"sessionId"`
	Text      string          `json:"text"`
	Buttons   []string        `json:"buttons,omitempty"`
	Booking   *BookingOutcome `json:"booking,omitempty"`
}

// Config tunes the conversation service.
type Config struct {
	ModelID           string
	Provider          string // bedrock or gemini, for metrics labels
	MaxTokens         int32
	MaxDispatchRounds int
	QuickReplyOff     bool
}

// Service is the chat entrypoint: it loads session history, runs the tool
// dispatch loop, classifies quick replies, and persists the updated history.
type Service struct {
	engine     SchedulingEngine
	history    *historyStore
	llm        LLMClient
	cfg        Config
	logger     *logging.Logger
	now        func() time.Time
	classifier *quickReplyClassifier
}

func NewService(engine SchedulingEngine, llm LLMClient, redisClient *redis.Client, cfg Config, logger *logging.Logger) *Service {
	if engine == nil {
		panic("conversation: scheduling engine cannot be nil")
	}
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("conversation")

	executor := newToolExecutor(engine, "chat", logger)
	return &Service{
		engine:     engine,
		history:    newHistoryStore(redisClient),
		llm:        llm,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		classifier: newQuickReplyClassifier(llm, executor, cfg.ModelID, cfg.QuickReplyOff, logger),
	}
}

// HandleMessage processes one patient message. A blank sessionID starts a new
// session; the returned Reply always carries the session id to continue with.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message, language, source string) (*Reply, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.handle_message")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("conversation: empty message")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if source == "" {
		source = "web"
	}
	span.SetAttributes(attribute.String("chairside.session_id", sessionID))
	metrics.ChatMessages.WithLabelValues(source).Inc()

	history, err := s.history.Load(ctx, sessionID)
	if err != nil {
		// A lost session is recoverable; a broken history store is not worth
		// failing the turn over.
		s.logger.Error("history load failed, starting fresh", "error", err, "session_id", sessionID)
		history = nil
	}
	history = append(history, ChatMessage{Role: ChatRoleUser, Content: message})

	system, err := s.buildSystem(ctx, language)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	executor := newToolExecutor(s.engine, source, s.logger)
	disp := newDispatcher(s.llm, executor, s.cfg.ModelID, s.cfg.MaxTokens, s.cfg.MaxDispatchRounds, s.cfg.Provider, s.logger)

	result, err := disp.run(ctx, system, history, language)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.history.Save(ctx, sessionID, result.History); err != nil {
		s.logger.Error("history save failed", "error", err, "session_id", sessionID)
	}

	reply := &Reply{
		SessionID: sessionID,
		Text:      result.Text,
		Booking:   result.Outcome,
	}
	reply.Buttons = s.classifier.Buttons(ctx, result.Text, offeredSlots(result.History))
	return reply, nil
}

func (s *Service) buildSystem(ctx context.Context, language string) ([]string, error) {
	cfg, err := s.engine.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversation: load settings: %w", err)
	}
	doctors, err := s.engine.Doctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversation: load doctors: %w", err)
	}
	return []string{systemPrompt(cfg, doctors, s.now(), language)}, nil
}

// offeredSlots pulls the times from the most recent check_availability result
// in this turn so pick_slot buttons mirror what the assistant just offered.
func offeredSlots(history []ChatMessage) []string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != ChatRoleTool {
			continue
		}
		for _, result := range history[i].ToolResults {
			if result.Name != toolCheckAvailability || result.IsError {
				continue
			}
			switch slots := result.Content["freeSlots"].(type) {
			case []string:
				return slots
			case []any:
				out := make([]string, 0, len(slots))
				for _, s := range slots {
					if str, ok := s.(string); ok {
						out = append(out, str)
					}
				}
				return out
			}
		}
	}
	return nil
}
