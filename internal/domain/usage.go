package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TurnUsage records the token spend of one generation call.
type TurnUsage struct {
	ID               int64
	ConversationID   int64
	PromptTokens     int
	CompletionTokens int
	Cost             decimal.Decimal
	CreatedAt        time.Time
}
