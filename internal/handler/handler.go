package handler

import (
	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/interview"
	"github.com/arlo-research/fieldtalk/internal/telegram"
	"github.com/go-telegram/bot"
)

// Handler holds all dependencies needed by the command and text handlers.
type Handler struct {
	bot    *bot.Bot
	cfg    *config.Config
	engine *interview.Engine
	opsLog *telegram.OpsLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot    *bot.Bot
	Cfg    *config.Config
	Engine *interview.Engine
	OpsLog *telegram.OpsLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:    deps.Bot,
		cfg:    deps.Cfg,
		engine: deps.Engine,
		opsLog: deps.OpsLog,
	}
}
