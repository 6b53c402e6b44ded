package middleware

import (
	"context"
	"log/slog"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Access returns middleware that enforces the allow-list. It runs before the
// user loader, so a rejected identity leaves no state behind: no user row,
// no conversation, no transcript entry.
func Access(cfg *config.Config) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, b, update)
				return
			}

			from := update.Message.From
			if !cfg.IsAllowed(from.ID) {
				slog.Warn("unauthorized message rejected", "telegram_id", from.ID, "error", domain.ErrUnauthorized)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   config.RefusalText,
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
