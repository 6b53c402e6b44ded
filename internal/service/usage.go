package service

import (
	"context"

	"github.com/arlo-research/fieldtalk/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// UsageService logs the token spend of each generation call. The bounded
// history already caps per-turn cost; this makes the actual spend visible.
type UsageService struct {
	db      *pgxpool.Pool
	queries *repository.Queries

	promptPricePerM     float64
	completionPricePerM float64
}

func NewUsageService(db *pgxpool.Pool, queries *repository.Queries, promptPricePerM, completionPricePerM float64) *UsageService {
	return &UsageService{
		db:                  db,
		queries:             queries,
		promptPricePerM:     promptPricePerM,
		completionPricePerM: completionPricePerM,
	}
}

func (s *UsageService) Record(ctx context.Context, conversationID int64, promptTokens, completionTokens int) error {
	cost := CalculateCost(promptTokens, completionTokens, s.promptPricePerM, s.completionPricePerM)
	err := s.queries.RecordTurnUsage(ctx, repository.RecordTurnUsageParams{
		ConversationID:   conversationID,
		PromptTokens:     int32(promptTokens),
		CompletionTokens: int32(completionTokens),
		Cost:             cost,
	})
	if err != nil {
		return storageErr("record turn usage", err)
	}
	return nil
}

// Total returns the accumulated cost of a conversation.
func (s *UsageService) Total(ctx context.Context, conversationID int64) (decimal.Decimal, error) {
	total, err := s.queries.SumConversationCost(ctx, conversationID)
	if err != nil {
		return decimal.Zero, storageErr("sum conversation cost", err)
	}
	return total, nil
}

// CalculateCost computes the USD cost of one call from per-1M-token prices.
func CalculateCost(promptTokens, completionTokens int, promptPricePerM, completionPricePerM float64) decimal.Decimal {
	promptCost := decimal.NewFromFloat(float64(promptTokens) * promptPricePerM / 1_000_000)
	completionCost := decimal.NewFromFloat(float64(completionTokens) * completionPricePerM / 1_000_000)
	return promptCost.Add(completionCost)
}
