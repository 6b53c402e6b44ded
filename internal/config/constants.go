package config

import "time"

const (
	// TerminalSentinel is the string the interview script instructs the
	// model to emit when the interview should end. Its presence in a
	// generated reply closes the conversation for generation.
	TerminalSentinel = "x7x"

	// Hard cap on generated length per turn.
	MaxCompletionTokens = 1024

	// Sampling temperature is pinned for reproducibility.
	GenerationTemperature = 0.0

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Typing indicator refresh interval
	TypingInterval = 4 * time.Second
)

// User-facing texts. Kept in one place so handlers stay short.
const (
	GreetingText = "Hello! I'm your survey bot. Let's get started. " +
		"You can type your responses, and I'll guide you through the survey."

	RefusalText = "Sorry, this bot is for authorized users only. " +
		"Please contact your administrator for access."

	PrivateOnlyText = "Sorry, this bot only works in private chats."

	BusyText = "One moment, I'm still working on your previous message."

	ConcludedText = "The interview has concluded. Send /start if you would like to begin a new one."

	GeneratorErrText = "Sorry, I couldn't process that right now. Please try again in a moment."

	InternalErrText = "Sorry, I encountered an error. Please try again later."
)
