package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/cortex/internal/runtime"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args map[string]any
}

type fakeDispatcher struct {
	inbox []domain.ToolResult
	tools []domain.Tool
	err   error
	calls []call
}

func (f *fakeDispatcher) Call(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if name != "receive" {
		return domain.ToolResult{Text: "sent"}, nil
	}
	if f.err != nil {
		return domain.ToolResult{}, f.err
	}
	if len(f.inbox) == 0 {
		return domain.ToolResult{}, nil
	}
	next := f.inbox[0]
	f.inbox = f.inbox[1:]
	return next, nil
}

func (f *fakeDispatcher) List() []domain.Tool { return f.tools }

func (f *fakeDispatcher) sent() []call {
	var out []call
	for _, c := range f.calls {
		if c.name == "send" {
			out = append(out, c)
		}
	}
	return out
}

type fakeRunner struct {
	inputs []string
	ids    []string
	result runtime.Result
}

func (f *fakeRunner) RunSession(ctx context.Context, id, input string) runtime.Result {
	f.ids = append(f.ids, id)
	f.inputs = append(f.inputs, input)
	return f.result
}

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	unlocks int
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, errors.New("held")
	}
	f.held[key] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.unlocks++
		return nil
	}, nil
}

func message(id float64, chat, text string) domain.ToolResult {
	return domain.ToolResult{Structured: map[string]any{"message_id": id, "chat_id": chat, "message": text}}
}

func TestPoller_HandlesAndReplies(t *testing.T) {
	disp := &fakeDispatcher{
		inbox: []domain.ToolResult{message(42, "c1", "Find the standings")},
		tools: []domain.Tool{{Name: "send", Parameters: map[string]any{"properties": map[string]any{"input": map[string]any{}}}}},
	}
	runner := &fakeRunner{result: runtime.Result{
		Answer:  "Sheet ready",
		Outcome: domain.OutcomeSuccess,
		Vars:    map[string]string{"link": "https://example.com/sheet"},
	}}
	p, err := New(Config{ReceiveTool: "receive", SendTool: "send"}, runner, disp)
	require.NoError(t, err)

	handled, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"Find the standings"}, runner.inputs)
	assert.Equal(t, []string{"inbox-42"}, runner.ids)

	sent := disp.sent()
	require.Len(t, sent, 1)
	input, ok := sent[0].args["input"].(map[string]any)
	require.True(t, ok, "send tool takes a single input parameter")
	assert.Equal(t, "c1", input["chat_id"])
	assert.Equal(t, "Task completed.\n\nSheet ready\n\nLink: https://example.com/sheet", input["text"])
}

func TestPoller_Deduplicates(t *testing.T) {
	disp := &fakeDispatcher{inbox: []domain.ToolResult{
		message(1, "c1", "hello"),
		message(1, "c1", "hello"),
		message(2, "c1", "again"),
	}}
	runner := &fakeRunner{result: runtime.Result{Answer: "ok", Outcome: domain.OutcomePartial}}
	p, err := New(Config{ReceiveTool: "receive", SendTool: "send"}, runner, disp)
	require.NoError(t, err)

	var handled []bool
	for i := 0; i < 3; i++ {
		h, err := p.PollOnce(context.Background())
		require.NoError(t, err)
		handled = append(handled, h)
	}
	assert.Equal(t, []bool{true, false, true}, handled)
	assert.Equal(t, []string{"hello", "again"}, runner.inputs)

	sent := disp.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Task ended (partial).\n\nok", sent[0].args["text"])
}

func TestPoller_SkipBacklog(t *testing.T) {
	disp := &fakeDispatcher{inbox: []domain.ToolResult{
		message(1, "c1", "old"),
		message(1, "c1", "old"),
		message(2, "c1", "new"),
	}}
	runner := &fakeRunner{}
	p, err := New(Config{ReceiveTool: "receive", SkipBacklog: true}, runner, disp)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.PollOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"new"}, runner.inputs)
}

func TestPoller_IgnoresEmptyAndErrorResults(t *testing.T) {
	disp := &fakeDispatcher{inbox: []domain.ToolResult{
		{Text: ""},
		{Text: "ERROR: token expired"},
		{Structured: map[string]any{"message": ""}},
	}}
	runner := &fakeRunner{}
	p, err := New(Config{ReceiveTool: "receive"}, runner, disp)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		handled, err := p.PollOnce(context.Background())
		require.NoError(t, err)
		assert.False(t, handled)
	}
	assert.Empty(t, runner.inputs)
}

func TestPoller_RejectsOversizedMessage(t *testing.T) {
	t.Setenv("CORTEX_MAX_INPUT_SIZE", "4")
	disp := &fakeDispatcher{inbox: []domain.ToolResult{message(7, "c1", "far too long")}}
	runner := &fakeRunner{}
	p, err := New(Config{ReceiveTool: "receive", SendTool: "send"}, runner, disp)
	require.NoError(t, err)

	handled, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Empty(t, runner.inputs)
	assert.Empty(t, disp.sent())
}

func TestPoller_ClaimsWithLocker(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"inbox:7": true}}
	disp := &fakeDispatcher{inbox: []domain.ToolResult{
		message(7, "c1", "taken by another replica"),
		message(8, "c1", "mine"),
	}}
	runner := &fakeRunner{}
	p, err := New(Config{ReceiveTool: "receive", LockWait: 10 * time.Millisecond}, runner, disp, WithLocker(locker))
	require.NoError(t, err)

	handled, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, handled)

	assert.Equal(t, []string{"mine"}, runner.inputs)
	assert.Equal(t, 1, locker.unlocks)
	assert.False(t, locker.held["inbox:8"], "lock is released after handling")
}

func TestPoller_ReceiveError(t *testing.T) {
	disp := &fakeDispatcher{err: errors.New("backend down")}
	p, err := New(Config{ReceiveTool: "receive"}, &fakeRunner{}, disp)
	require.NoError(t, err)

	_, err = p.PollOnce(context.Background())
	assert.ErrorContains(t, err, "receive: backend down")
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	disp := &fakeDispatcher{err: errors.New("backend down")}
	p, err := New(Config{ReceiveTool: "receive"}, &fakeRunner{}, disp)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) {
		waits = append(waits, d)
		if len(waits) == 2 {
			cancel()
		}
	}

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, []time.Duration{DefaultErrorBackoff, DefaultErrorBackoff}, waits)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &fakeRunner{}, &fakeDispatcher{})
	assert.Error(t, err)

	_, err = New(Config{ReceiveTool: "receive", Reply: "{{ .Answer"}, &fakeRunner{}, &fakeDispatcher{})
	assert.ErrorContains(t, err, "parse reply template")
}

func TestDecodeMessage(t *testing.T) {
	msg, ok := decodeMessage(domain.ToolResult{Structured: map[string]any{"id": "abc", "text": " hi ", "chat_id": float64(99)}})
	require.True(t, ok)
	assert.Equal(t, Message{ID: "abc", ChatID: "99", Text: "hi"}, msg)

	msg, ok = decodeMessage(domain.ToolResult{Text: "plain request"})
	require.True(t, ok)
	assert.Equal(t, "plain request", msg.Text)
	assert.Len(t, msg.ID, 16, "derived ids are stable hashes")

	again, _ := decodeMessage(domain.ToolResult{Text: "plain request"})
	assert.Equal(t, msg.ID, again.ID)
}
