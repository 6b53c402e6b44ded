package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// OpsLogger mirrors operational events to a Telegram channel with per-topic
// threads. Disabled when no chat is configured.
type OpsLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewOpsLogger(b *bot.Bot, cfg *config.Config) *OpsLogger {
	return &OpsLogger{bot: b, cfg: cfg}
}

type opsTopic string

const (
	topicError     opsTopic = "error"
	topicNewUser   opsTopic = "newUser"
	topicCompleted opsTopic = "completed"
)

func (l *OpsLogger) log(topic opsTopic, message string) {
	if l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.topicID(topic)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send ops log", "topic", topic, "error", err)
	}
}

func (l *OpsLogger) LogError(err error, context string, turnID string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Turn:* `%s`\n*Error:* `%s`\n*Time:* %s",
		context, turnID, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.log(topicError, msg)
}

func (l *OpsLogger) LogNewUser(user *domain.User) {
	msg := fmt.Sprintf("👤 *New Respondent*\n\n*ID:* `%d`\n*Name:* %s\n*Username:* @%s",
		user.TelegramID, user.FirstName, user.Username)
	l.log(topicNewUser, msg)
}

func (l *OpsLogger) LogInterviewCompleted(user *domain.User, conversationID int64) {
	msg := fmt.Sprintf("✅ *Interview Completed*\n\n*User:* `%d`\n*Conversation:* `%d`",
		user.TelegramID, conversationID)
	l.log(topicCompleted, msg)
}

func (l *OpsLogger) topicID(topic opsTopic) int {
	switch topic {
	case topicError:
		return l.cfg.LogTopicError
	case topicNewUser:
		return l.cfg.LogTopicNewUser
	case topicCompleted:
		return l.cfg.LogTopicCompleted
	default:
		return 0
	}
}
