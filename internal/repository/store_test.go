package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptsignal-chat/internal/config"
	"cryptsignal-chat/internal/model"
)

// scriptedClock 按顺序返回预设时间，用于模拟时钟抖动
type scriptedClock struct {
	clockwork.Clock
	times []time.Time
}

func (c *scriptedClock) Now() time.Time {
	if len(c.times) == 0 {
		return time.Time{}
	}
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

type storeFactory func(t *testing.T, clock clockwork.Clock) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock clockwork.Clock) Store {
			return NewMemoryStore(clock)
		},
		"gorm-sqlite": func(t *testing.T, clock clockwork.Clock) Store {
			db, err := OpenDatabase(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, false)
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			})
			return NewGormStore(db, clock)
		},
	}
}

func contents(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestStore_AppendOrder(t *testing.T) {
	for name, newStore := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			// 第二条消息的时钟比第一条早
			clock := &scriptedClock{
				Clock: clockwork.NewFakeClockAt(base),
				times: []time.Time{base, base.Add(time.Second), base.Add(-time.Second), base.Add(time.Second)},
			}
			s := newStore(t, clock)

			conv, err := s.CreateConversation(ctx, model.DefaultConversationTitle)
			require.NoError(t, err)

			a, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleUser, "a")
			require.NoError(t, err)
			b, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleAssistant, "b")
			require.NoError(t, err)
			c, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleUser, "c")
			require.NoError(t, err)

			assert.False(t, b.CreatedAt.Before(a.CreatedAt))
			assert.False(t, c.CreatedAt.Before(b.CreatedAt))
			assert.Less(t, a.ID, b.ID)
			assert.Less(t, b.ID, c.ID)

			msgs, err := s.ListMessages(ctx, conv.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, contents(msgs))
		})
	}
}

func TestStore_SameTimestampKeepsInsertionOrder(t *testing.T) {
	for name, newStore := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, clockwork.NewFakeClock())

			conv, err := s.CreateConversation(ctx, "t")
			require.NoError(t, err)

			for _, c := range []string{"a", "b", "a", "b"} {
				_, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleUser, c)
				require.NoError(t, err)
			}

			msgs, err := s.ListMessages(ctx, conv.ID)
			require.NoError(t, err)
			// 不按内容去重
			assert.Equal(t, []string{"a", "b", "a", "b"}, contents(msgs))
		})
	}
}

func TestStore_ConversationLifecycle(t *testing.T) {
	for name, newStore := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClock()
			s := newStore(t, clock)

			first, err := s.CreateConversation(ctx, "first")
			require.NoError(t, err)
			clock.Advance(time.Minute)
			second, err := s.CreateConversation(ctx, "second")
			require.NoError(t, err)

			list, err := s.ListConversations(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID)
			assert.Equal(t, first.ID, list[1].ID)

			require.NoError(t, s.UpdateTitle(ctx, first.ID, "renamed"))
			got, err := s.GetConversation(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", got.Title)

			_, err = s.AppendMessage(ctx, first.ID, model.MessageRoleUser, "hello")
			require.NoError(t, err)
			_, err = s.AppendMessage(ctx, second.ID, model.MessageRoleUser, "other")
			require.NoError(t, err)

			require.NoError(t, s.DeleteMessages(ctx, first.ID))
			msgs, err := s.ListMessages(ctx, first.ID)
			require.NoError(t, err)
			assert.Empty(t, msgs)

			_, err = s.AppendMessage(ctx, first.ID, model.MessageRoleUser, "again")
			require.NoError(t, err)
			require.NoError(t, s.DeleteConversation(ctx, first.ID))

			_, err = s.GetConversation(ctx, first.ID)
			assert.ErrorIs(t, err, ErrConversationNotFound)
			_, err = s.ListMessages(ctx, first.ID)
			assert.ErrorIs(t, err, ErrConversationNotFound)

			// 其他会话不受影响
			msgs, err = s.ListMessages(ctx, second.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"other"}, contents(msgs))
		})
	}
}

func TestStore_Errors(t *testing.T) {
	for name, newStore := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, clockwork.NewFakeClock())

			_, err := s.AppendMessage(ctx, 999, model.MessageRoleUser, "x")
			assert.ErrorIs(t, err, ErrConversationNotFound)

			conv, err := s.CreateConversation(ctx, "t")
			require.NoError(t, err)
			_, err = s.AppendMessage(ctx, conv.ID, model.MessageRole("system"), "x")
			assert.ErrorIs(t, err, ErrInvalidRole)

			assert.ErrorIs(t, s.UpdateTitle(ctx, 999, "x"), ErrConversationNotFound)
			assert.ErrorIs(t, s.DeleteConversation(ctx, 999), ErrConversationNotFound)
			assert.ErrorIs(t, s.DeleteMessages(ctx, 999), ErrConversationNotFound)
		})
	}
}
