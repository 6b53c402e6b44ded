package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/middleware"
	tg "github.com/arlo-research/fieldtalk/internal/telegram"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// HandleText processes one interview turn. Every failure is converted to one
// short user-facing message; nothing propagates past this handler.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
		return
	}
	chatID := msg.Chat.ID

	if msg.Chat.Type != "private" {
		slog.Warn("message from non-private chat", "chat_type", msg.Chat.Type, "chat_id", chatID)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   config.PrivateOnlyText,
		})
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   config.InternalErrText,
		})
		return
	}

	stopTyping := tg.StartTyping(ctx, b, chatID)
	defer stopTyping()

	res, err := h.engine.Turn(ctx, user, msg.Text)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.turnErrorText(user, err),
		})
		return
	}

	if err := tg.SendLongMessage(ctx, b, chatID, res.Reply); err != nil {
		slog.Error("relay reply", "telegram_id", user.TelegramID, "conversation_id", res.ConversationID, "error", err)
		return
	}

	if res.Concluded {
		h.opsLog.LogInterviewCompleted(user, res.ConversationID)
	}
}

// turnErrorText maps an engine failure to the single short message the user
// sees, logging the full context on the way.
func (h *Handler) turnErrorText(user *domain.User, err error) string {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return config.BusyText
	case errors.Is(err, domain.ErrConversationConcluded):
		return config.ConcludedText
	case errors.Is(err, domain.ErrGeneratorUnavailable):
		return config.GeneratorErrText
	default:
		errID := uuid.NewString()
		slog.Error("turn failed", "error_id", errID, "telegram_id", user.TelegramID, "error", err)
		h.opsLog.LogError(err, "turn", errID)
		return config.InternalErrText
	}
}
