package terminal

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	chatservice "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Complete(context.Context, []chat.Entry) (string, error) {
	return s.reply, s.err
}

func newModel(t *testing.T, completer turn.Completer) *Model {
	t.Helper()
	p := persona.Default()
	chats := chatservice.NewService(p)
	st, _ := chats.Initialize(context.Background(), "tui", "")

	cfg := turn.DefaultConfig()
	cfg.Interval = 0
	return New(context.Background(), chats, turn.New(p, completer, cfg), st)
}

func typeAndSubmit(t *testing.T, m *Model, text string) tea.Msg {
	t.Helper()
	m.input.SetValue(text)
	cmd := m.submit()
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestSubmitRecordsReply(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵～今天也要开心哦"})

	msg := typeAndSubmit(t, m, "你好")
	require.IsType(t, turnDoneMsg{}, msg)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	_, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)

	display := m.state.Display()
	require.Len(t, display, 2)
	assert.Equal(t, "你好", display[0].Content)
	assert.Equal(t, "喵～今天也要开心哦", display[1].Content)
	assert.Contains(t, m.viewport.View(), "你好")
}

func TestBlankInputIgnored(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵"})

	assert.Nil(t, typeAndSubmit(t, m, "   "))
	assert.Empty(t, m.state.Display())
	assert.False(t, m.busy)
}

func TestClearCommandResetsSession(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵"})
	m.Update(typeAndSubmit(t, m, "你好"))
	require.Len(t, m.state.Display(), 2)

	assert.Nil(t, typeAndSubmit(t, m, "/clear 小橘"))
	assert.Empty(t, m.state.Display())
	assert.Equal(t, "小橘", m.state.Session().PersonaName)
	assert.Len(t, m.state.Prompt(), 1)
	assert.Contains(t, m.state.Prompt()[0].Content, "小橘")
}

func TestExitKeywordShowsFarewellAndStaysOpen(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵 还在"})

	_, cmd := m.Update(typeAndSubmit(t, m, "exit"))
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Len(t, m.state.Prompt(), 1)

	display := m.state.Display()
	require.Len(t, display, 2)
	assert.Equal(t, m.persona.Farewell, display[1].Content)
	assert.Contains(t, m.viewport.View(), "exit")

	// The chat keeps going after the farewell.
	m.Update(typeAndSubmit(t, m, "你好"))
	assert.Len(t, m.state.Display(), 4)
	assert.Len(t, m.state.Prompt(), 3)
}

func TestFailureShowsErrorBubble(t *testing.T) {
	m := newModel(t, stubCompleter{err: errors.New("timeout")})

	m.Update(typeAndSubmit(t, m, "你好"))

	display := m.state.Display()
	require.Len(t, display, 2)
	assert.Contains(t, display[1].Content, "timeout")
	assert.Len(t, m.state.Prompt(), 2)
}

func TestFramesDrawPendingBubble(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵"})

	m.Update(frameMsg{frame: turn.Frame{Kind: turn.FrameDelta, Text: "喵～▌"}})
	require.NotNil(t, m.pending)
	assert.Contains(t, m.viewport.View(), "喵～▌")

	m.Update(frameMsg{frame: turn.Frame{Kind: turn.FrameRerender}})
	assert.Nil(t, m.pending)
}

func TestRenderForwardsToProgram(t *testing.T) {
	m := newModel(t, stubCompleter{reply: "喵"})
	var got []tea.Msg
	m.send = func(msg tea.Msg) { got = append(got, msg) }

	require.NoError(t, m.Render(context.Background(), turn.Frame{Kind: turn.FrameThinking, Text: "..."}))
	require.Len(t, got, 1)
	assert.Equal(t, turn.FrameThinking, got[0].(frameMsg).frame.Kind)
}
