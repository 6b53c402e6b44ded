package service

import (
	"context"
	"errors"

	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TranscriptService is the append-only message log. Records are never
// updated or deleted.
type TranscriptService struct {
	db      *pgxpool.Pool
	queries *repository.Queries
}

func NewTranscriptService(db *pgxpool.Pool, queries *repository.Queries) *TranscriptService {
	return &TranscriptService{db: db, queries: queries}
}

// Append writes one immutable message. Returns ErrConversationNotFound when
// the conversation does not exist; the store is left unchanged in that case.
func (s *TranscriptService) Append(ctx context.Context, conversationID int64, role, content string) (*domain.Message, error) {
	row, err := s.queries.AddMessage(ctx, repository.AddMessageParams{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		if errors.Is(err, repository.ErrReferencedRowMissing) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, storageErr("append message", err)
	}
	return rowToMessage(row), nil
}

// Recent returns up to limit of the newest messages in ascending timestamp
// order, a suffix of the full transcript. Truncation drops the oldest
// messages first.
func (s *TranscriptService) Recent(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	rows, err := s.queries.GetRecentMessages(ctx, repository.GetRecentMessagesParams{
		ConversationID: conversationID,
		Limit:          int32(limit),
	})
	if err != nil {
		return nil, storageErr("get recent messages", err)
	}

	// The query returns newest first; flip to chronological.
	msgs := make([]domain.Message, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = *rowToMessage(r)
	}
	return msgs, nil
}

func (s *TranscriptService) Count(ctx context.Context, conversationID int64) (int64, error) {
	n, err := s.queries.CountMessages(ctx, conversationID)
	if err != nil {
		return 0, storageErr("count messages", err)
	}
	return n, nil
}

func rowToMessage(row repository.Message) *domain.Message {
	return &domain.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           row.Role,
		Content:        row.Content,
		CreatedAt:      pgTimestamptzToTime(row.CreatedAt),
	}
}
