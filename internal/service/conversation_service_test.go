package service

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/model"
	"cryptsignal-chat/internal/repository"
)

type echoAsker struct{ calls []api.GenerateRequest }

func (a *echoAsker) Ask(_ context.Context, req api.GenerateRequest) string {
	a.calls = append(a.calls, req)
	return "echo: " + req.Query
}

func newService() (*ConversationService, *echoAsker) {
	ai := &echoAsker{}
	store := repository.NewMemoryStore(clockwork.NewFakeClock())
	return NewConversationService(store, ai, nil), ai
}

func TestPostMessage_PersistsExchangeAndTitle(t *testing.T) {
	svc, ai := newService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)

	ex, err := svc.PostMessage(ctx, conv.ID, " what is BTC doing today? ", "9")
	require.NoError(t, err)
	assert.Equal(t, "what is BTC doing today?", ex.UserMessage.Content)
	assert.Equal(t, "echo: what is BTC doing today?", ex.AIMessage.Content)
	assert.Equal(t, []api.GenerateRequest{{Query: "what is BTC doing today?", UserID: "9"}}, ai.calls)

	msgs, err := svc.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)

	convs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "what is BTC doing today?", convs[0].Title)

	_, err = svc.PostMessage(ctx, conv.ID, "second", "9")
	require.NoError(t, err)
	convs, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "what is BTC doing today?", convs[0].Title)
}

func TestPostMessage_Errors(t *testing.T) {
	svc, ai := newService()
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, 1, "hi", "")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)

	conv, err := svc.Create(ctx, "Market")
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, conv.ID, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Empty(t, ai.calls)
}

func TestClearAndDelete(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "Keep")
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, conv.ID, "hello", "")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, conv.ID))
	msgs, err := svc.Messages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, svc.Delete(ctx, conv.ID))
	_, err = svc.Messages(ctx, conv.ID)
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)
	assert.ErrorIs(t, svc.Clear(ctx, conv.ID), repository.ErrConversationNotFound)
}
