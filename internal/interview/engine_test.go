package interview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory implementation of ConversationStore and
// TranscriptStore with the same semantics as the Postgres-backed services.
type memStore struct {
	mu         sync.Mutex
	nextConvID int64
	nextMsgID  int64
	clock      time.Time
	convs      []*domain.Conversation
	msgs       []domain.Message

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) FindOrCreate(_ context.Context, userID int64) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.convs) - 1; i >= 0; i-- {
		if s.convs[i].UserID == userID && s.convs[i].Open() {
			c := *s.convs[i]
			return &c, nil
		}
	}
	return s.create(userID), nil
}

func (s *memStore) Restart(_ context.Context, userID int64) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	for _, c := range s.convs {
		if c.UserID == userID && c.Open() {
			end := now
			c.EndedAt = &end
		}
	}
	return s.create(userID), nil
}

func (s *memStore) create(userID int64) *domain.Conversation {
	s.nextConvID++
	c := &domain.Conversation{ID: s.nextConvID, UserID: userID, StartedAt: s.tick()}
	s.convs = append(s.convs, c)
	out := *c
	return &out
}

func (s *memStore) Latest(_ context.Context, userID int64) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.convs) - 1; i >= 0; i-- {
		if s.convs[i].UserID == userID {
			c := *s.convs[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) Conclude(_ context.Context, conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.ID == conversationID {
			end := s.tick()
			c.EndedAt = &end
			c.Concluded = true
			return nil
		}
	}
	return domain.ErrConversationNotFound
}

func (s *memStore) Append(_ context.Context, conversationID int64, role, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	found := false
	for _, c := range s.convs {
		if c.ID == conversationID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrConversationNotFound
	}
	s.nextMsgID++
	m := domain.Message{
		ID:             s.nextMsgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.tick(),
	}
	s.msgs = append(s.msgs, m)
	return &m, nil
}

func (s *memStore) Recent(_ context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *memStore) transcript(conversationID int64) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) openConversations(userID int64) []*domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range s.convs {
		if c.UserID == userID && c.Open() {
			out = append(out, c)
		}
	}
	return out
}

// scriptedGenerator replays queued replies and records what it was called with.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error

	// When set, the first call signals started and then parks until
	// blockFirst is closed. Later calls pass straight through.
	blockFirst chan struct{}
	started    chan struct{}
	callCount  atomic.Int32

	calls [][]generator.Turn
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ string, history []generator.Turn) (*generator.Reply, error) {
	if g.callCount.Add(1) == 1 && g.blockFirst != nil {
		close(g.started)
		select {
		case <-g.blockFirst:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, append([]generator.Turn(nil), history...))
	if g.err != nil {
		return nil, g.err
	}
	text := "Tell me more."
	if len(g.replies) > 0 {
		text = g.replies[0]
		g.replies = g.replies[1:]
	}
	return &generator.Reply{Text: text, PromptTokens: 100, CompletionTokens: 20}, nil
}

type recordedUsage struct {
	mu      sync.Mutex
	records [][2]int
}

func (u *recordedUsage) Record(_ context.Context, _ int64, promptTokens, completionTokens int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, [2]int{promptTokens, completionTokens})
	return nil
}

func newTestEngine(store *memStore, gen generator.Generator) (*Engine, *recordedUsage) {
	usage := &recordedUsage{}
	e := NewEngine(store, store, usage, gen, Options{
		Script:       "interview instructions",
		Sentinel:     "x7x",
		HistoryLimit: 100,
		Timeout:      time.Second,
	})
	return e, usage
}

func testUser() *domain.User {
	return &domain.User{ID: 1, TelegramID: 4242, FirstName: "Ada"}
}

func TestFirstContactCreatesConversationAndTranscript(t *testing.T) {
	store := newMemStore()
	gen := &scriptedGenerator{replies: []string{"Which language is easiest for you?"}}
	e, usage := newTestEngine(store, gen)

	res, err := e.Turn(context.Background(), testUser(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Which language is easiest for you?", res.Reply)
	assert.False(t, res.Concluded)

	// One conversation, open.
	open := store.openConversations(1)
	require.Len(t, open, 1)

	// Respondent then assistant, in that order.
	msgs := store.transcript(open[0].ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleRespondent, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)

	// The generator saw exactly the inbound message.
	require.Len(t, gen.calls, 1)
	require.Len(t, gen.calls[0], 1)
	assert.Equal(t, generator.Turn{Role: domain.RoleRespondent, Content: "hello"}, gen.calls[0][0])

	// Token spend was recorded.
	require.Len(t, usage.records, 1)
	assert.Equal(t, [2]int{100, 20}, usage.records[0])
}

func TestDoubleRestartLeavesExactlyOneOpen(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(store, &scriptedGenerator{})
	user := testUser()

	first, err := e.Restart(context.Background(), user)
	require.NoError(t, err)
	second, err := e.Restart(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	open := store.openConversations(user.ID)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	// The superseded conversation has a non-null end timestamp.
	latestFirst := store.convs[0]
	require.NotNil(t, latestFirst.EndedAt)
	assert.False(t, latestFirst.Concluded)

	// Each restart logged its "/start" turn.
	assert.Len(t, store.transcript(first.ID), 1)
	assert.Len(t, store.transcript(second.ID), 1)
}

func TestGeneratorFailureKeepsInboundMessage(t *testing.T) {
	store := newMemStore()
	gen := &scriptedGenerator{err: domain.ErrGeneratorUnavailable}
	e, usage := newTestEngine(store, gen)

	_, err := e.Turn(context.Background(), testUser(), "my answer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeneratorUnavailable))

	// The inbound message is durable; no outbound message was appended.
	open := store.openConversations(1)
	require.Len(t, open, 1)
	msgs := store.transcript(open[0].ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleRespondent, msgs[0].Role)
	assert.Equal(t, "my answer", msgs[0].Content)

	assert.Empty(t, usage.records)
}

func TestSentinelConcludesConversation(t *testing.T) {
	store := newMemStore()
	gen := &scriptedGenerator{replies: []string{"Thank you for sharing. x7x"}}
	e, _ := newTestEngine(store, gen)
	user := testUser()

	res, err := e.Turn(context.Background(), user, "goodbye")
	require.NoError(t, err)
	assert.True(t, res.Concluded)
	// Relayed verbatim, sentinel included.
	assert.Equal(t, "Thank you for sharing. x7x", res.Reply)

	convID := store.convs[0].ID
	require.NotNil(t, store.convs[0].EndedAt)
	assert.True(t, store.convs[0].Concluded)
	// Sentinel message persisted.
	msgs := store.transcript(convID)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "x7x")

	// A later message does not resurrect the closed session and triggers no
	// generation call.
	_, err = e.Turn(context.Background(), user, "one more thing")
	assert.True(t, errors.Is(err, domain.ErrConversationConcluded))
	assert.Len(t, gen.calls, 1)
	assert.Len(t, store.transcript(convID), 2)
	assert.Empty(t, store.openConversations(user.ID))

	// An explicit restart opens a fresh session that accepts turns again.
	_, err = e.Restart(context.Background(), user)
	require.NoError(t, err)
	res, err = e.Turn(context.Background(), user, "hello again")
	require.NoError(t, err)
	assert.False(t, res.Concluded)
}

func TestHistoryIsBoundedSuffix(t *testing.T) {
	store := newMemStore()
	gen := &scriptedGenerator{}
	usage := &recordedUsage{}
	e := NewEngine(store, store, usage, gen, Options{
		Script:       "interview instructions",
		Sentinel:     "x7x",
		HistoryLimit: 3,
		Timeout:      time.Second,
	})
	user := testUser()

	for _, text := range []string{"one", "two", "three"} {
		_, err := e.Turn(context.Background(), user, text)
		require.NoError(t, err)
	}

	// The last call saw at most 3 turns, ending with the newest inbound
	// message: truncation drops the oldest first.
	last := gen.calls[len(gen.calls)-1]
	require.Len(t, last, 3)
	assert.Equal(t, "three", last[2].Content)
	assert.Equal(t, domain.RoleRespondent, last[2].Role)

	// History is in non-decreasing timestamp order.
	msgs := store.transcript(store.convs[0].ID)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
}

func TestConcurrentTurnForSameIdentityRejected(t *testing.T) {
	store := newMemStore()
	gen := &scriptedGenerator{
		blockFirst: make(chan struct{}),
		started:    make(chan struct{}),
	}
	e, _ := newTestEngine(store, gen)
	user := testUser()

	done := make(chan error, 1)
	go func() {
		_, err := e.Turn(context.Background(), user, "slow one")
		done <- err
	}()

	// Wait until the first turn is parked inside the generator.
	<-gen.started

	// A second message from the same identity is rejected, not interleaved.
	_, err := e.Turn(context.Background(), user, "impatient")
	assert.True(t, errors.Is(err, domain.ErrBusy))

	// A different identity is not blocked.
	other := &domain.User{ID: 2, TelegramID: 9999}
	_, err = e.Turn(context.Background(), other, "hello")
	require.NoError(t, err)

	close(gen.blockFirst)
	require.NoError(t, <-done)

	// The rejected message left no transcript entry.
	msgs := store.transcript(store.convs[0].ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "slow one", msgs[0].Content)
}

func TestAppendToMissingConversationFails(t *testing.T) {
	store := newMemStore()

	_, err := store.Append(context.Background(), 404, domain.RoleRespondent, "into the void")
	assert.True(t, errors.Is(err, domain.ErrConversationNotFound))
	assert.Empty(t, store.msgs)
}

func TestStorageFailureSurfacesBeforeGeneration(t *testing.T) {
	store := newMemStore()
	store.appendErr = domain.ErrStorageUnavailable
	gen := &scriptedGenerator{}
	e, _ := newTestEngine(store, gen)

	_, err := e.Turn(context.Background(), testUser(), "hello")
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	// The generator is never reached when the inbound write fails.
	assert.Empty(t, gen.calls)
}
