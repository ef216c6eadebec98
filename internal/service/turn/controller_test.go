package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	chatservice "github.com/zhouzirui/cat-chatroom/internal/service/chat"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]chat.Entry
}

func (f *fakeCompleter) Complete(_ context.Context, transcript []chat.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transcript)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStreamer struct {
	fakeCompleter
	chunks []string
}

func (f *fakeStreamer) StreamCompletion(_ context.Context, transcript []chat.Entry, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, transcript)
	f.mu.Unlock()
	for _, chunk := range f.chunks {
		if err := onDelta(chunk); err != nil {
			return "", err
		}
	}
	return strings.Join(f.chunks, ""), nil
}

type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) Render(_ context.Context, frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recorder) kinds() []FrameKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]FrameKind, 0, len(r.frames))
	for _, f := range r.frames {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func (r *recorder) last(kind FrameKind) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Kind == kind {
			return r.frames[i], true
		}
	}
	return Frame{}, false
}

func setup(t *testing.T, completer Completer, cfg Config) (*Controller, *chatservice.Service, *chatservice.State) {
	t.Helper()
	p := persona.Default()
	svc := chatservice.NewService(p)
	st, _ := svc.Initialize(context.Background(), "session-1", "")
	return New(p, completer, cfg), svc, st
}

func instant() Config {
	cfg := DefaultConfig()
	cfg.Interval = 0
	return cfg
}

func TestSubmitScenarioGreeting(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"喵～你好呀主人！"}}
	ctrl, _, st := setup(t, completer, instant())
	rec := &recorder{}

	outcome, err := ctrl.Submit(context.Background(), st, "你好", rec)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, outcome.Phase)
	assert.Equal(t, "喵～你好呀主人！", outcome.Reply)
	assert.NoError(t, outcome.Err)

	display := st.Display()
	require.Len(t, display, 2)
	assert.Equal(t, chat.RoleUser, display[0].Role)
	assert.Equal(t, "你好", display[0].Content)
	assert.Equal(t, chat.RoleAssistant, display[1].Role)
	assert.Equal(t, "喵～你好呀主人！", display[1].Content)

	prompt := st.Prompt()
	require.Len(t, prompt, 3)
	assert.Equal(t, chat.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "你叫咪咪")
	assert.Equal(t, "你好", prompt[1].Content)
	assert.Equal(t, "喵～你好呀主人！", prompt[2].Content)

	require.Equal(t, 1, completer.callCount())
	assert.Len(t, completer.calls[0], 2, "model sees system + user entries")

	assert.Equal(t, []FrameKind{FrameUser, FrameThinking, FrameDelta, FrameMessage}, rec.kinds())
}

func TestSubmitTranscriptParity(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"喵 一", "喵 二", "喵 三"}}
	ctrl, _, st := setup(t, completer, instant())

	for i, msg := range []string{"a", "b", "c"} {
		_, err := ctrl.Submit(context.Background(), st, msg, nil)
		require.NoError(t, err)

		turns := i + 1
		assert.Len(t, st.Display(), 2*turns)
		assert.Len(t, st.Prompt(), 1+2*turns)
	}

	// Every turn sends the whole transcript: system, previous pairs, new user entry.
	require.Equal(t, 3, completer.callCount())
	for i, call := range completer.calls {
		assert.Len(t, call, 2*i+2, "turn %d", i+1)
	}
}

func TestSubmitExitKeywordsShortCircuit(t *testing.T) {
	for _, word := range []string{"退出", "Exit", "QUIT", "  quit "} {
		t.Run(word, func(t *testing.T) {
			completer := &fakeCompleter{replies: []string{"unused"}}
			ctrl, _, st := setup(t, completer, instant())
			rec := &recorder{}

			outcome, err := ctrl.Submit(context.Background(), st, word, rec)
			require.NoError(t, err)
			assert.True(t, outcome.Farewell)
			assert.Equal(t, PhaseSettled, outcome.Phase)
			assert.Zero(t, completer.callCount())

			display := st.Display()
			require.Len(t, display, 2)
			assert.Equal(t, word, display[0].Content)
			assert.Equal(t, "喵～主人要走了吗？我会想你的！记得常来看我哦～🐾", display[1].Content)
			assert.Len(t, st.Prompt(), 1)

			frame, ok := rec.last(FrameRerender)
			require.True(t, ok)
			assert.Len(t, frame.Transcript, 2)
			assert.Equal(t, []FrameKind{FrameRerender}, rec.kinds())
		})
	}
}

func TestSubmitModelFailureIsIsolated(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("401 unauthorized")}
	ctrl, _, st := setup(t, completer, instant())
	rec := &recorder{}

	outcome, err := ctrl.Submit(context.Background(), st, "你好", rec)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, outcome.Phase)
	require.Error(t, outcome.Err)

	display := st.Display()
	require.Len(t, display, 2)
	assert.Equal(t, "喵～出错了！可能是网络问题：401 unauthorized", display[1].Content)
	assert.Equal(t, chat.RoleAssistant, display[1].Role)

	prompt := st.Prompt()
	require.Len(t, prompt, 2)
	assert.Equal(t, chat.RoleUser, prompt[1].Role)

	frame, ok := rec.last(FrameError)
	require.True(t, ok)
	assert.Equal(t, display[1].Content, frame.Text)
	_, revealed := rec.last(FrameDelta)
	assert.False(t, revealed)
}

func TestSubmitEmptyMessage(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"unused"}}
	ctrl, _, st := setup(t, completer, instant())

	_, err := ctrl.Submit(context.Background(), st, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, st.Display())
	assert.Zero(t, completer.callCount())
}

func TestRevealFidelity(t *testing.T) {
	reply := "喵～  今天的阳光\n真好 呀！ "
	completer := &fakeCompleter{replies: []string{reply}}
	ctrl, _, st := setup(t, completer, instant())
	rec := &recorder{}

	_, err := ctrl.Submit(context.Background(), st, "在干嘛", rec)
	require.NoError(t, err)

	var deltas []string
	for _, f := range rec.frames {
		if f.Kind == FrameDelta {
			deltas = append(deltas, f.Text)
		}
	}
	require.Len(t, deltas, len(Tokens(reply)))
	for i, d := range deltas {
		assert.True(t, strings.HasSuffix(d, "▌"), "delta %d keeps the cursor", i)
		if i > 0 {
			assert.Greater(t, len(d), len(deltas[i-1]), "revealed text only grows")
		}
	}
	assert.Equal(t, reply+"▌", deltas[len(deltas)-1])

	final, ok := rec.last(FrameMessage)
	require.True(t, ok)
	assert.Equal(t, reply, final.Text)
}

func TestRevealPacing(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"a b c d"}}
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	ctrl, _, st := setup(t, completer, cfg)

	start := time.Now()
	_, err := ctrl.Submit(context.Background(), st, "hi", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSubmitStreamingDelivery(t *testing.T) {
	streamer := &fakeStreamer{chunks: []string{"喵～", "主人", "回来啦！"}}
	cfg := instant()
	cfg.Streaming = true
	ctrl, _, st := setup(t, streamer, cfg)
	rec := &recorder{}

	outcome, err := ctrl.Submit(context.Background(), st, "我回来了", rec)
	require.NoError(t, err)
	assert.Equal(t, "喵～主人回来啦！", outcome.Reply)

	var deltas []string
	for _, f := range rec.frames {
		if f.Kind == FrameDelta {
			deltas = append(deltas, f.Text)
		}
	}
	assert.Equal(t, []string{"喵～▌", "喵～主人▌", "喵～主人回来啦！▌"}, deltas)

	final, ok := rec.last(FrameMessage)
	require.True(t, ok)
	assert.Equal(t, "喵～主人回来啦！", final.Text)
	assert.Len(t, st.Prompt(), 3)
}

func TestStreamingIgnoredWhenDisabled(t *testing.T) {
	streamer := &fakeStreamer{
		fakeCompleter: fakeCompleter{replies: []string{"整段 回复"}},
		chunks:        []string{"不该", "出现"},
	}
	ctrl, _, st := setup(t, streamer, instant())

	outcome, err := ctrl.Submit(context.Background(), st, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "整段 回复", outcome.Reply)
}

type blockingCompleter struct {
	started chan struct{}
}

func (b *blockingCompleter) Complete(ctx context.Context, _ []chat.Entry) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResetSupersedesPendingTurn(t *testing.T) {
	completer := &blockingCompleter{started: make(chan struct{})}
	ctrl, svc, st := setup(t, completer, instant())

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), st, "你好", nil)
		done <- err
	}()

	<-completer.started
	svc.Reset(context.Background(), "session-1", "小橘")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, chatservice.ErrTurnSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not finish after reset")
	}

	assert.Empty(t, st.Display())
	require.Len(t, st.Prompt(), 1)
	assert.Contains(t, st.Prompt()[0].Content, "你叫小橘")
}

func TestTokensRoundTrip(t *testing.T) {
	cases := []string{"", "单个", "a b", "  lead", "trail  ", "a\n\nb\tc", "   "}
	for _, text := range cases {
		assert.Equal(t, text, strings.Join(Tokens(text), ""), "text %q", text)
	}
	assert.Equal(t, []string{"a", " b", " c"}, Tokens("a b c"))
}

func TestTokensSplitUnicodeSpaces(t *testing.T) {
	cases := map[string][]string{
		"喵～\u3000你好\u3000主人": {"喵～", "\u3000你好", "\u3000主人"},
		"a\u00a0b":               {"a", "\u00a0b"},
		"喵\u3000\u3000":          {"喵\u3000\u3000"},
	}
	for text, want := range cases {
		got := Tokens(text)
		assert.Equal(t, want, got, "text %q", text)
		assert.Equal(t, text, strings.Join(got, ""))
	}
}

type gateCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateCompleter) Complete(ctx context.Context, _ []chat.Entry) (string, error) {
	close(g.started)
	<-g.release
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "喵 还在", nil
}

func TestSubmitSettlesAfterCallerCancels(t *testing.T) {
	completer := &gateCompleter{started: make(chan struct{}), release: make(chan struct{})}
	ctrl, _, st := setup(t, completer, instant())

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := ctrl.Submit(ctx, st, "你好", nil)
		done <- result{outcome, err}
	}()

	<-completer.started
	cancel()
	close(completer.release)

	res := <-done
	require.NoError(t, res.err)
	assert.NoError(t, res.outcome.Err)
	assert.Equal(t, "喵 还在", res.outcome.Reply)
	require.Len(t, st.Display(), 2)
	assert.Equal(t, "喵 还在", st.Display()[1].Content)
}
