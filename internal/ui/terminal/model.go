// Package terminal runs the cat chat room as a Bubble Tea program.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zhouzirui/cat-chatroom/internal/analysis/emotion"
	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	chatservice "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
)

const clearCommand = "/clear"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("215"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	borderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(lipgloss.Color("240"))
)

type frameMsg struct{ frame turn.Frame }

type turnDoneMsg struct {
	outcome turn.Outcome
	err     error
}

// Model is the Bubble Tea model of the chat room.
type Model struct {
	ctx     context.Context
	persona persona.Persona
	chats   *chatservice.Service
	turns   *turn.Controller
	state   *chatservice.State
	send    func(tea.Msg)

	viewport viewport.Model
	input    textinput.Model
	markdown *glamour.TermRenderer
	ready    bool
	width    int

	busy    bool
	pending *turn.Frame
	status  string
}

// New creates the model for an initialized session.
func New(ctx context.Context, chats *chatservice.Service, turns *turn.Controller, state *chatservice.State) *Model {
	p := chats.Persona()

	ti := textinput.New()
	ti.Placeholder = p.InputHint
	ti.CharLimit = 2000
	ti.Focus()

	return &Model{
		ctx:      ctx,
		persona:  p,
		chats:    chats,
		turns:    turns,
		state:    state,
		input:    ti,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// Attach lets turns running in the background deliver frames to the program.
func (m *Model) Attach(p *tea.Program) {
	m.send = p.Send
}

// Render implements turn.Renderer by forwarding frames to the program.
func (m *Model) Render(_ context.Context, frame turn.Frame) error {
	if m.send != nil {
		m.send(frameMsg{frame: frame})
	}
	return nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			m.refresh()
			return m, tea.Batch(cmds...)
		}
	case frameMsg:
		m.applyFrame(msg.frame)
	case turnDoneMsg:
		m.busy = false
		m.pending = nil
		m.status = ""
		if msg.err != nil && !errors.Is(msg.err, chatservice.ErrTurnSuperseded) {
			m.status = msg.err.Error()
		}
		// A farewell is just another settled turn; the room stays open.
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.persona.Icon + " " + m.persona.Title))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.persona.WelcomeLine(m.state.Session().PersonaName)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(borderStyle.Width(m.width).Render(m.input.View()))
	b.WriteString("\n")

	help := "enter 发送 · /clear [名字] 清空聊天记录 · esc 退出"
	if m.status != "" {
		status := runewidth.Truncate(m.status, max(m.width-runewidth.StringWidth(help)-2, 8), "…")
		b.WriteString(errorStyle.Render(status) + "  ")
	}
	b.WriteString(hintStyle.Render(help))
	return b.String()
}

func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// Clearing is allowed mid-turn; the running turn is superseded.
	if fields := strings.Fields(text); fields[0] == clearCommand {
		m.input.SetValue("")
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), clearCommand))
		m.state = m.chats.Reset(m.ctx, m.state.Session().ID, name)
		m.pending = nil
		m.status = ""
		return nil
	}
	if m.busy {
		return nil
	}
	m.input.SetValue("")

	m.busy = true
	ctx, st, turns := m.ctx, m.state, m.turns
	return func() tea.Msg {
		outcome, err := turns.Submit(ctx, st, text, m)
		return turnDoneMsg{outcome: outcome, err: err}
	}
}

func (m *Model) applyFrame(frame turn.Frame) {
	switch frame.Kind {
	case turn.FrameUser, turn.FrameRerender:
		m.pending = nil
	default:
		f := frame
		m.pending = &f
	}
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width = width
	// title, welcome, blank, input border, input, help
	chrome := 7
	if !m.ready {
		m.viewport = viewport.New(width, max(height-chrome, 3))
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = max(height-chrome, 3)
	}
	m.input.Width = max(width-4, 10)

	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(width-6, 20))); err == nil {
		m.markdown = r
	}
	m.refresh()
}

// refresh redraws the transcript from the session state plus the in-flight bubble.
func (m *Model) refresh() {
	var b strings.Builder
	for _, entry := range m.state.Display() {
		b.WriteString(m.renderEntry(entry))
		b.WriteString("\n")
	}
	if m.pending != nil {
		avatar := m.pending.Avatar
		if avatar == "" {
			avatar = m.persona.Icon
		}
		text := m.pending.Text
		if m.pending.Kind == turn.FrameError {
			text = errorStyle.Render(text)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", avatar, text))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderEntry(entry chat.Entry) string {
	if entry.Role == chat.RoleUser {
		return userStyle.Render(m.persona.UserAvatar+" ") + entry.Content
	}

	avatar := m.persona.Icon
	if entry.Mood != "" {
		avatar = emotion.Avatar(emotion.Label(entry.Mood))
	}
	return avatar + " " + m.renderMarkdown(entry.Content)
}

func (m *Model) renderMarkdown(text string) string {
	if m.markdown == nil {
		return text
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}
