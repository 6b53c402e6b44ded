package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/middleware"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// handleStart is the explicit restart path: any previously open interview is
// closed and a fresh one begins.
func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if update.Message.Chat.Type != "private" {
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

	conv, err := h.engine.Restart(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   config.BusyText,
			})
			return
		}
		slog.Error("restart failed", "telegram_id", user.TelegramID, "error", err)
		h.opsLog.LogError(err, "restart", "")
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   config.InternalErrText,
		})
		return
	}

	slog.Info("interview started", "telegram_id", user.TelegramID, "conversation_id", conv.ID)
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   config.GreetingText,
	})
}
