package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/generator"
	"github.com/google/uuid"
)

// ConversationStore is the session bookkeeping the engine needs. Implemented
// by service.ConversationService.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, userID int64) (*domain.Conversation, error)
	Restart(ctx context.Context, userID int64) (*domain.Conversation, error)
	Latest(ctx context.Context, userID int64) (*domain.Conversation, error)
	Conclude(ctx context.Context, conversationID int64) error
}

// TranscriptStore is the append-only message log. Implemented by
// service.TranscriptService.
type TranscriptStore interface {
	Append(ctx context.Context, conversationID int64, role, content string) (*domain.Message, error)
	Recent(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
}

// UsageRecorder logs the token spend of a generation call. Implemented by
// service.UsageService.
type UsageRecorder interface {
	Record(ctx context.Context, conversationID int64, promptTokens, completionTokens int) error
}

// Engine drives one interview turn: resolve the conversation, persist the
// inbound message, generate the interviewer's reply, persist it, and detect
// the terminal sentinel. Turns for the same identity are serialized; turns
// for different identities run concurrently.
type Engine struct {
	conversations ConversationStore
	transcripts   TranscriptStore
	usage         UsageRecorder
	gen           generator.Generator

	script       string
	sentinel     string
	historyLimit int
	timeout      time.Duration

	// one mutex per external identity
	locks sync.Map
}

type Options struct {
	Script       string
	Sentinel     string
	HistoryLimit int
	Timeout      time.Duration
}

func NewEngine(conversations ConversationStore, transcripts TranscriptStore, usage UsageRecorder, gen generator.Generator, opts Options) *Engine {
	return &Engine{
		conversations: conversations,
		transcripts:   transcripts,
		usage:         usage,
		gen:           gen,
		script:        opts.Script,
		sentinel:      opts.Sentinel,
		historyLimit:  opts.HistoryLimit,
		timeout:       opts.Timeout,
	}
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	ConversationID int64
	Reply          string
	// Concluded is set when the reply contained the terminal sentinel and
	// the conversation was closed for generation.
	Concluded bool
}

// Restart closes every open conversation for the user and opens a fresh one.
// The "/start" command itself is logged as the first respondent turn, so the
// transcript records how the session began.
func (e *Engine) Restart(ctx context.Context, user *domain.User) (*domain.Conversation, error) {
	mu := e.lockFor(user.TelegramID)
	if !mu.TryLock() {
		return nil, domain.ErrBusy
	}
	defer mu.Unlock()

	conv, err := e.conversations.Restart(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := e.transcripts.Append(ctx, conv.ID, domain.RoleRespondent, "/start"); err != nil {
		return nil, err
	}

	slog.Info("conversation restarted", "telegram_id", user.TelegramID, "conversation_id", conv.ID)
	return conv, nil
}

// Turn processes one inbound respondent message and returns the generated
// reply. The inbound message is durably stored before the generator is
// invoked, so it survives any generation failure.
func (e *Engine) Turn(ctx context.Context, user *domain.User, text string) (*TurnResult, error) {
	mu := e.lockFor(user.TelegramID)
	if !mu.TryLock() {
		return nil, domain.ErrBusy
	}
	defer mu.Unlock()

	turnID := uuid.NewString()

	conv, err := e.resolveConversation(ctx, user)
	if err != nil {
		return nil, err
	}

	if _, err := e.transcripts.Append(ctx, conv.ID, domain.RoleRespondent, text); err != nil {
		return nil, err
	}

	history, err := e.transcripts.Recent(ctx, conv.ID, e.historyLimit)
	if err != nil {
		return nil, err
	}

	turns := make([]generator.Turn, len(history))
	for i, m := range history {
		turns[i] = generator.Turn{Role: m.Role, Content: m.Content}
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	reply, err := e.gen.Generate(genCtx, e.script, turns)
	if err != nil {
		slog.Error("generation failed",
			"turn_id", turnID,
			"telegram_id", user.TelegramID,
			"conversation_id", conv.ID,
			"elapsed", time.Since(started),
			"error", err,
		)
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	if _, err := e.transcripts.Append(ctx, conv.ID, domain.RoleAssistant, reply.Text); err != nil {
		return nil, err
	}

	if err := e.usage.Record(ctx, conv.ID, reply.PromptTokens, reply.CompletionTokens); err != nil {
		// Usage accounting never blocks the reply.
		slog.Warn("record usage failed", "turn_id", turnID, "conversation_id", conv.ID, "error", err)
	}

	res := &TurnResult{ConversationID: conv.ID, Reply: reply.Text}
	if strings.Contains(reply.Text, e.sentinel) {
		if err := e.conversations.Conclude(ctx, conv.ID); err != nil {
			return nil, err
		}
		res.Concluded = true
		slog.Info("interview concluded", "turn_id", turnID, "telegram_id", user.TelegramID, "conversation_id", conv.ID)
	}

	slog.Info("turn completed",
		"turn_id", turnID,
		"telegram_id", user.TelegramID,
		"conversation_id", conv.ID,
		"prompt_tokens", reply.PromptTokens,
		"completion_tokens", reply.CompletionTokens,
		"elapsed", time.Since(started),
	)
	return res, nil
}

// resolveConversation finds the conversation an inbound message belongs to.
// An open conversation is used as-is. A concluded one blocks further turns
// until the user explicitly restarts; it is never silently resurrected and
// no replacement is auto-created for it. A user with no history (or whose
// last session ended by restart elsewhere) gets a fresh conversation.
func (e *Engine) resolveConversation(ctx context.Context, user *domain.User) (*domain.Conversation, error) {
	latest, err := e.conversations.Latest(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Open() {
		return latest, nil
	}
	if latest != nil && latest.Concluded {
		return nil, domain.ErrConversationConcluded
	}
	return e.conversations.FindOrCreate(ctx, user.ID)
}

func (e *Engine) lockFor(telegramID int64) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(telegramID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
