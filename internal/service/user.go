package service

import (
	"context"
	"log/slog"

	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserService struct {
	db      *pgxpool.Pool
	queries *repository.Queries
}

func NewUserService(db *pgxpool.Pool, queries *repository.Queries) *UserService {
	return &UserService{db: db, queries: queries}
}

// Profile carries the attributes Telegram reports for an identity.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
	IsBot     bool
}

// FindOrCreate resolves a Telegram identity to a persistent user, creating
// one with the supplied profile on first contact. Profile fields are frozen
// after creation: later contacts never re-sync them.
func (s *UserService) FindOrCreate(ctx context.Context, telegramID int64, profile Profile) (*domain.User, bool, error) {
	row, err := s.queries.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		return rowToUser(row), false, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, storageErr("get user", err)
	}

	row, err = s.queries.CreateUser(ctx, repository.CreateUserParams{
		TelegramID: telegramID,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Username:   profile.Username,
		IsBot:      profile.IsBot,
	})
	if err != nil {
		return nil, false, storageErr("create user", err)
	}

	slog.Info("new user created", "telegram_id", telegramID, "username", profile.Username)
	return rowToUser(row), true, nil
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row, err := s.queries.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("get user", err)
	}
	return rowToUser(row), nil
}

func rowToUser(row repository.User) *domain.User {
	return &domain.User{
		ID:         row.ID,
		TelegramID: row.TelegramID,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Username:   row.Username,
		IsBot:      row.IsBot,
		CreatedAt:  pgTimestamptzToTime(row.CreatedAt),
	}
}
