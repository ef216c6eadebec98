package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
)

// ErrTurnSuperseded reports that the session was reset or destroyed while a turn was running.
var ErrTurnSuperseded = errors.New("turn superseded by session reset")

// State holds one session's prompt and display transcripts.
type State struct {
	mu         sync.Mutex
	session    chat.Session
	prompt     []chat.Entry
	display    []chat.Entry
	generation uint64
	cancelTurn context.CancelFunc

	// turn holds a token while a turn is running so turns never overlap.
	turn chan struct{}
}

func newState(session chat.Session, systemPrompt string) *State {
	return &State{
		session: session,
		prompt:  []chat.Entry{chat.SystemEntry(systemPrompt)},
		display: make([]chat.Entry, 0, 16),
		turn:    make(chan struct{}, 1),
	}
}

// Session returns the session metadata.
func (st *State) Session() chat.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session
}

// Prompt returns a copy of the transcript sent to the model.
func (st *State) Prompt() []chat.Entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]chat.Entry(nil), st.prompt...)
}

// Display returns a copy of the transcript shown to the user.
func (st *State) Display() []chat.Entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]chat.Entry(nil), st.display...)
}

// AppendUser appends a user entry to both transcripts.
func (st *State) AppendUser(text string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.appendUserLocked(text)
}

// AppendAssistant appends an assistant entry to both transcripts.
func (st *State) AppendAssistant(text, mood string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.appendAssistantLocked(text, mood)
}

// AppendDisplay appends an entry to the display transcript only.
func (st *State) AppendDisplay(entry chat.Entry) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.display = append(st.display, entry)
}

func (st *State) appendUserLocked(text string) {
	entry := chat.UserEntry(text)
	st.prompt = append(st.prompt, entry)
	st.display = append(st.display, entry)
}

func (st *State) appendAssistantLocked(text, mood string) {
	entry := chat.AssistantEntry(text)
	st.prompt = append(st.prompt, entry)
	entry.Mood = mood
	st.display = append(st.display, entry)
}

// reset reseeds the transcripts and supersedes any running turn.
func (st *State) reset(personaName, systemPrompt string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.supersedeLocked()
	st.session.PersonaName = personaName
	st.prompt = []chat.Entry{chat.SystemEntry(systemPrompt)}
	st.display = make([]chat.Entry, 0, 16)
}

func (st *State) supersedeLocked() {
	st.generation++
	if st.cancelTurn != nil {
		st.cancelTurn()
		st.cancelTurn = nil
	}
}

// Turn is the exclusive right to mutate a session for one submission.
type Turn struct {
	state      *State
	generation uint64
	cancel     context.CancelFunc
	once       sync.Once
}

// BeginTurn waits for the previous turn of this session to finish and starts a new one.
// The returned context keeps ctx's values but not its cancellation: a caller going away
// does not abort the turn. It is cancelled only when the session is reset or destroyed.
func (st *State) BeginTurn(ctx context.Context) (context.Context, *Turn, error) {
	select {
	case st.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	st.mu.Lock()
	st.cancelTurn = cancel
	t := &Turn{state: st, generation: st.generation, cancel: cancel}
	st.mu.Unlock()

	return turnCtx, t, nil
}

// End releases the session for the next turn.
func (t *Turn) End() {
	t.once.Do(func() {
		t.cancel()
		t.state.mu.Lock()
		if t.state.generation == t.generation {
			t.state.cancelTurn = nil
		}
		t.state.mu.Unlock()
		<-t.state.turn
	})
}

// AppendUser appends a user entry to both transcripts unless the turn was superseded.
func (t *Turn) AppendUser(text string) error {
	return t.locked(func(st *State) { st.appendUserLocked(text) })
}

// AppendAssistant appends an assistant entry to both transcripts unless the turn was superseded.
func (t *Turn) AppendAssistant(text, mood string) error {
	return t.locked(func(st *State) { st.appendAssistantLocked(text, mood) })
}

// AppendDisplay appends a display-only entry unless the turn was superseded.
func (t *Turn) AppendDisplay(entry chat.Entry) error {
	return t.locked(func(st *State) { st.display = append(st.display, entry) })
}

// Display returns the display transcript as seen by this turn.
func (t *Turn) Display() []chat.Entry {
	return t.state.Display()
}

// Prompt returns the prompt transcript as seen by this turn.
func (t *Turn) Prompt() []chat.Entry {
	return t.state.Prompt()
}

func (t *Turn) locked(fn func(st *State)) error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.generation != t.generation {
		return ErrTurnSuperseded
	}
	fn(t.state)
	return nil
}
