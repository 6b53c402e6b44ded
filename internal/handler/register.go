package handler

import (
	"github.com/go-telegram/bot"
)

// Register registers the command handlers on the bot instance. "/start" is
// the restart command; plain text reaches HandleText via the bot's default
// handler wired up in main.
func (h *Handler) Register() {
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
}
