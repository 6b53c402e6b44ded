package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same queries
// run inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror the table layout; timestamp conversion happens in the
// service layer.

type User struct {
	ID         int64
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	IsBot      bool
	CreatedAt  pgtype.Timestamptz
}

type Conversation struct {
	ID        int64
	UserID    int64
	StartedAt pgtype.Timestamptz
	EndedAt   pgtype.Timestamptz
	Concluded bool
}

type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	CreatedAt      pgtype.Timestamptz
}

const createUser = `
INSERT INTO users (telegram_id, first_name, last_name, username, is_bot)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, telegram_id, first_name, last_name, username, is_bot, created_at`

type CreateUserParams struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	IsBot      bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.TelegramID, arg.FirstName, arg.LastName, arg.Username, arg.IsBot)
	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.IsBot, &u.CreatedAt)
	return u, err
}

const getUserByTelegramID = `
SELECT id, telegram_id, first_name, last_name, username, is_bot, created_at
FROM users WHERE telegram_id = $1`

func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	row := q.db.QueryRow(ctx, getUserByTelegramID, telegramID)
	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.IsBot, &u.CreatedAt)
	return u, err
}

const updateUserInfo = `
UPDATE users SET first_name = $2, last_name = $3, username = $4 WHERE id = $1`

type UpdateUserInfoParams struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// UpdateUserInfo refreshes profile fields. Nothing on the message path calls
// it; profile fields stay frozen at first contact.
func (q *Queries) UpdateUserInfo(ctx context.Context, arg UpdateUserInfoParams) error {
	_, err := q.db.Exec(ctx, updateUserInfo, arg.ID, arg.FirstName, arg.LastName, arg.Username)
	return err
}

const createConversation = `
INSERT INTO conversations (user_id)
VALUES ($1)
RETURNING id, user_id, started_at, ended_at, concluded`

func (q *Queries) CreateConversation(ctx context.Context, userID int64) (Conversation, error) {
	row := q.db.QueryRow(ctx, createConversation, userID)
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.StartedAt, &c.EndedAt, &c.Concluded)
	return c, err
}

const getOpenConversation = `
SELECT id, user_id, started_at, ended_at, concluded
FROM conversations
WHERE user_id = $1 AND ended_at IS NULL
ORDER BY started_at DESC, id DESC
LIMIT 1`

func (q *Queries) GetOpenConversation(ctx context.Context, userID int64) (Conversation, error) {
	row := q.db.QueryRow(ctx, getOpenConversation, userID)
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.StartedAt, &c.EndedAt, &c.Concluded)
	return c, err
}

const getLatestConversation = `
SELECT id, user_id, started_at, ended_at, concluded
FROM conversations
WHERE user_id = $1
ORDER BY started_at DESC, id DESC
LIMIT 1`

func (q *Queries) GetLatestConversation(ctx context.Context, userID int64) (Conversation, error) {
	row := q.db.QueryRow(ctx, getLatestConversation, userID)
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.StartedAt, &c.EndedAt, &c.Concluded)
	return c, err
}

const closeOpenConversations = `
UPDATE conversations SET ended_at = now() WHERE user_id = $1 AND ended_at IS NULL`

// CloseOpenConversations ends every open conversation for the user. Run it
// inside the same transaction that opens the replacement.
func (q *Queries) CloseOpenConversations(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, closeOpenConversations, userID)
	return err
}

const concludeConversation = `
UPDATE conversations SET concluded = TRUE, ended_at = now() WHERE id = $1`

func (q *Queries) ConcludeConversation(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, concludeConversation, id)
	return err
}

const addMessage = `
INSERT INTO messages (conversation_id, role, content)
VALUES ($1, $2, $3)
RETURNING id, conversation_id, role, content, created_at`

type AddMessageParams struct {
	ConversationID int64
	Role           string
	Content        string
}

func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, addMessage, arg.ConversationID, arg.Role, arg.Content)
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if isForeignKeyViolation(err) {
		return Message{}, fmt.Errorf("conversation %d: %w", arg.ConversationID, ErrReferencedRowMissing)
	}
	return m, err
}

const getRecentMessages = `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

type GetRecentMessagesParams struct {
	ConversationID int64
	Limit          int32
}

// GetRecentMessages returns the newest messages first; callers reverse the
// slice to get chronological order. The id tie-break keeps ordering stable
// when two writes land in the same clock tick.
func (q *Queries) GetRecentMessages(ctx context.Context, arg GetRecentMessagesParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, getRecentMessages, arg.ConversationID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

const countMessages = `
SELECT count(*) FROM messages WHERE conversation_id = $1`

func (q *Queries) CountMessages(ctx context.Context, conversationID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countMessages, conversationID).Scan(&n)
	return n, err
}

const recordTurnUsage = `
INSERT INTO turn_usage (conversation_id, prompt_tokens, completion_tokens, cost)
VALUES ($1, $2, $3, $4)`

type RecordTurnUsageParams struct {
	ConversationID   int64
	PromptTokens     int32
	CompletionTokens int32
	Cost             decimal.Decimal
}

func (q *Queries) RecordTurnUsage(ctx context.Context, arg RecordTurnUsageParams) error {
	_, err := q.db.Exec(ctx, recordTurnUsage, arg.ConversationID, arg.PromptTokens, arg.CompletionTokens, arg.Cost)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("conversation %d: %w", arg.ConversationID, ErrReferencedRowMissing)
	}
	return err
}

const sumConversationCost = `
SELECT COALESCE(sum(cost), 0) FROM turn_usage WHERE conversation_id = $1`

func (q *Queries) SumConversationCost(ctx context.Context, conversationID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.db.QueryRow(ctx, sumConversationCost, conversationID).Scan(&total)
	return total, err
}

// ErrReferencedRowMissing marks a foreign key violation: the referenced
// conversation does not exist at write time.
var ErrReferencedRowMissing = errors.New("referenced row missing")

// Postgres error class 23503: foreign_key_violation.
const fkViolationCode = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolationCode
}
