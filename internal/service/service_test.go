package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/chat-chain/internal/chain"
	"github.com/capitalize-ai/chat-chain/internal/llm"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/internal/modes/chatty"
)

// fakeLLM answers classification prompts with classify and answer calls with reply.
type fakeLLM struct {
	mu        sync.Mutex
	classify  string
	reply     string
	answerErr error
	answers   []*llm.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(req.Messages) == 1 && req.Temperature > 0 {
		return &llm.CompletionResponse{Content: f.classify}, nil
	}
	f.answers = append(f.answers, req)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake-model", TokensOut: 2}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	for i, token := range strings.Fields(resp.Content) {
		if err := cb(token, i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	messages []*model.Message
	events   []*model.ConversationEvent
	comments []any
	err      error
}

func (p *fakePublisher) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.messages = append(p.messages, msg)
	return uint64(len(p.messages)), nil
}

func (p *fakePublisher) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.events = append(p.events, event)
	return uint64(len(p.events)), nil
}

func (p *fakePublisher) PublishComment(ctx context.Context, session string, comment any) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.comments = append(p.comments, comment)
	return 7, nil
}

type testAugmenter struct{}

func (testAugmenter) Augment(ctx context.Context, collection, question string) (string, error) {
	return "answer from " + collection, nil
}

type fixture struct {
	llm   *fakeLLM
	pub   *fakePublisher
	convs *ConversationService
	msgs  *MessageService
}

func newFixture(t *testing.T, budget *llm.Budget) *fixture {
	t.Helper()

	pub := &fakePublisher{}
	graph, err := chatty.NewGraph(NewCommentRecorder(pub, nil), "knowledge")
	require.NoError(t, err)

	fl := &fakeLLM{classify: "0", reply: "Hello there friend"}
	convs := NewConversationService(graph, time.Minute, nil)
	dispatcher := chain.NewDispatcher(fl, testAugmenter{}, chain.DispatcherConfig{}, nil)
	msgs := NewMessageService(convs, dispatcher, fl, budget, pub, MessageConfig{Model: "gpt-3.5-turbo"}, nil)

	return &fixture{llm: fl, pub: pub, convs: convs, msgs: msgs}
}

func TestConversationLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{Metadata: map[string]string{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, chatty.Lobby, conv.Mode)
	assert.Equal(t, 0, conv.LogLength)
	assert.Equal(t, "v", conv.Metadata["k"])

	_, err = f.convs.Get(ctx, "t2", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	got, err := f.convs.Get(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	_, err = f.convs.Create(ctx, "t2", "u2", &model.CreateConversationRequest{})
	require.NoError(t, err)

	list, err := f.convs.List(ctx, "t1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.True(t, list.HasMore)
	assert.Len(t, list.Conversations, 1)

	assert.ErrorIs(t, f.convs.Delete(ctx, "t2", conv.ID), ErrConversationNotFound)
	require.NoError(t, f.convs.Delete(ctx, "t1", conv.ID))
	_, err = f.convs.Get(ctx, "t1", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSendRunsKnowledgeTurn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	resp, err := f.msgs.Send(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "Who invented algebra?"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there friend", resp.Message.Content)
	assert.Equal(t, chatty.Lobby, resp.Mode)
	assert.Equal(t, uint64(2), resp.Message.Sequence)

	require.Len(t, f.llm.answers, 1)
	answer := f.llm.answers[0]
	assert.Equal(t, "gpt-3.5-turbo", answer.Model)
	assert.Equal(t, chain.DefaultResponseTokenLimit, answer.MaxTokens)
	assert.Equal(t, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "answer from knowledge"},
		{Role: llm.RoleUser, Content: "Who invented algebra?"},
	}, answer.Messages)

	log, err := f.convs.Messages(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "Who invented algebra?"},
		{Role: model.RoleAssistant, Content: "Hello there friend"},
	}, log.Messages)

	require.Len(t, f.pub.messages, 2)
	assert.Equal(t, model.RoleUser, f.pub.messages[0].Role)
	assert.Equal(t, model.RoleAssistant, f.pub.messages[1].Role)
	assert.Empty(t, f.pub.events)
}

func TestSendWithStreamPublishesTransition(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.classify = "1"
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	var tokens []string
	reply, err := f.msgs.SendWithStream(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "I have a comment"},
		func(token string, index int) error {
			assert.Equal(t, len(tokens), index)
			tokens = append(tokens, token)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", "there", "friend"}, tokens)
	assert.Equal(t, chatty.CommentDetails, reply.Mode)
	require.Len(t, f.llm.answers, 1)
	assert.True(t, f.llm.answers[0].Stream)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, model.EventTypeModeTransition, f.pub.events[0].Type)
	assert.Equal(t, map[string]any{"from": chatty.Lobby, "to": chatty.CommentDetails}, f.pub.events[0].Metadata)

	got, err := f.convs.Get(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, chatty.CommentDetails, got.Mode)
	assert.Equal(t, 0, got.WindowStart)
	assert.Equal(t, 2, got.LogLength)
}

func TestSendFailurePublishesErrorEvent(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("upstream 500")
	f.llm.answerErr = boom
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = f.msgs.Send(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, boom)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, model.EventTypeError, f.pub.events[0].Type)

	log, err := f.convs.Messages(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Len(t, log.Messages, 1)
}

func TestSendUnknownConversation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.msgs.Send(context.Background(), "t1", "missing", &model.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSendSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.pub.err = errors.New("nats down")
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	resp, err := f.msgs.Send(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "hi"})
	require.NoError(t, err)
	assert.Zero(t, resp.Message.Sequence)
}

type wordCounter struct{}

func (wordCounter) Count(messages []llm.ChatMessage) int {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n
}

func TestSendFitsBudget(t *testing.T) {
	budget := &llm.Budget{Counter: wordCounter{}, PromptCap: 100, ContextWindow: 110, MaxResponse: 500}
	f := newFixture(t, budget)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = f.msgs.Send(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "hi"})
	require.NoError(t, err)

	require.Len(t, f.llm.answers, 1)
	assert.Equal(t, 110-4, f.llm.answers[0].MaxTokens)
}

func TestCommentRecorderReference(t *testing.T) {
	pub := &fakePublisher{}
	ref, err := NewCommentRecorder(pub, nil).Register(context.Background(), chatty.Comment{Session: "s", Name: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "7", ref)
	require.Len(t, pub.comments, 1)
	assert.Equal(t, chatty.Comment{Session: "s", Name: "Sam"}, pub.comments[0])
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, "t1", "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)

	const turns = 8
	var g errgroup.Group
	for i := 0; i < turns; i++ {
		g.Go(func() error {
			_, err := f.msgs.Send(ctx, "t1", conv.ID, &model.SendMessageRequest{Content: "who are you?"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	log, err := f.convs.Messages(ctx, "t1", conv.ID)
	require.NoError(t, err)
	require.Len(t, log.Messages, 2*turns)
	for i, msg := range log.Messages {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, msg.Role, "message %d", i)
	}
}
