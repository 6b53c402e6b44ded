package service

import (
	"context"

	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationService struct {
	db      *pgxpool.Pool
	queries *repository.Queries
}

func NewConversationService(db *pgxpool.Pool, queries *repository.Queries) *ConversationService {
	return &ConversationService{db: db, queries: queries}
}

// FindOrCreate returns the user's open conversation, creating one when none
// is open.
func (s *ConversationService) FindOrCreate(ctx context.Context, userID int64) (*domain.Conversation, error) {
	row, err := s.queries.GetOpenConversation(ctx, userID)
	if err == nil {
		return rowToConversation(row), nil
	}
	if err != pgx.ErrNoRows {
		return nil, storageErr("get open conversation", err)
	}

	row, err = s.queries.CreateConversation(ctx, userID)
	if err != nil {
		return nil, storageErr("create conversation", err)
	}
	return rowToConversation(row), nil
}

// Restart closes every open conversation for the user and opens a fresh one.
// Both steps run in one transaction so a failure never leaves the user with
// zero or two open conversations.
func (s *ConversationService) Restart(ctx context.Context, userID int64) (*domain.Conversation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin restart", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)
	if err := qtx.CloseOpenConversations(ctx, userID); err != nil {
		return nil, storageErr("close open conversations", err)
	}

	row, err := qtx.CreateConversation(ctx, userID)
	if err != nil {
		return nil, storageErr("create conversation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit restart", err)
	}
	return rowToConversation(row), nil
}

// Latest returns the user's most recent conversation regardless of state,
// or nil when the user has never had one.
func (s *ConversationService) Latest(ctx context.Context, userID int64) (*domain.Conversation, error) {
	row, err := s.queries.GetLatestConversation(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storageErr("get latest conversation", err)
	}
	return rowToConversation(row), nil
}

// Conclude marks the conversation finished after the generator emitted the
// terminal sentinel. No further generation happens for it.
func (s *ConversationService) Conclude(ctx context.Context, conversationID int64) error {
	if err := s.queries.ConcludeConversation(ctx, conversationID); err != nil {
		return storageErr("conclude conversation", err)
	}
	return nil
}

func rowToConversation(row repository.Conversation) *domain.Conversation {
	return &domain.Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		StartedAt: pgTimestamptzToTime(row.StartedAt),
		EndedAt:   pgTimestamptzToTimePtr(row.EndedAt),
		Concluded: row.Concluded,
	}
}
