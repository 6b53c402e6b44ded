package middleware

import (
	"context"
	"log/slog"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const UserKey ctxKey = "user"

// GetUser extracts the resolved user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// UserResolver resolves a Telegram identity to a persistent user.
// Implemented by service.UserService.
type UserResolver interface {
	FindOrCreate(ctx context.Context, telegramID int64, profile service.Profile) (*domain.User, bool, error)
}

// NewUserFunc is called once when an identity makes first contact.
type NewUserFunc func(user *domain.User)

// UserLoader returns middleware that resolves the sender to a persistent
// user and puts it into context. Creation is lazy: a user row appears on
// first contact with whatever profile Telegram reported then. Non-private
// chats are passed through without touching storage, so a refused group
// message leaves no user row behind. When resolution fails the chain stops
// and the sender gets the transient error reply.
func UserLoader(users UserResolver, onNewUser NewUserFunc) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil || update.Message.Chat.Type != "private" {
				next(ctx, b, update)
				return
			}

			from := update.Message.From
			user, created, err := users.FindOrCreate(ctx, from.ID, service.Profile{
				FirstName: from.FirstName,
				LastName:  from.LastName,
				Username:  from.Username,
				IsBot:     from.IsBot,
			})
			if err != nil {
				slog.Error("resolve user", "telegram_id", from.ID, "error", err)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   config.InternalErrText,
				})
				return
			}

			if created && onNewUser != nil {
				onNewUser(user)
			}

			ctx = context.WithValue(ctx, UserKey, user)
			next(ctx, b, update)
		}
	}
}
