package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/zhouzirui/cat-chatroom/internal/analysis/emotion"
	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	chatservice "github.com/zhouzirui/cat-chatroom/internal/service/chat"
)

// ErrEmptyMessage is returned for blank submissions; nothing is recorded.
var ErrEmptyMessage = errors.New("message is empty")

// Completer is the model collaborator: it turns a full prompt transcript into a reply.
type Completer interface {
	Complete(ctx context.Context, transcript []chat.Entry) (string, error)
}

// Streamer is implemented by collaborators that can deliver the reply incrementally.
// onDelta receives each new piece of text; the full reply is returned at the end.
type Streamer interface {
	StreamCompletion(ctx context.Context, transcript []chat.Entry, onDelta func(delta string) error) (string, error)
}

// Phase is the lifecycle position of a submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitted
	PhaseAwaitingModel
	PhaseStreaming
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitted:
		return "submitted"
	case PhaseAwaitingModel:
		return "awaiting_model"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome describes how a submission settled.
type Outcome struct {
	Phase    Phase
	Reply    string
	Mood     emotion.Label
	Farewell bool
	// Err carries the model failure when the turn settled with an error message.
	Err error
}

// Config tunes the reveal.
type Config struct {
	// Interval is the pause between revealed tokens.
	Interval time.Duration
	// Cursor is appended to partially revealed text.
	Cursor string
	// Streaming prefers genuine incremental delivery when the collaborator supports it.
	Streaming bool
}

// DefaultConfig matches the classic typing effect.
func DefaultConfig() Config {
	return Config{Interval: 50 * time.Millisecond, Cursor: "▌"}
}

// Controller runs one submission at a time per session.
type Controller struct {
	persona   persona.Persona
	completer Completer
	cfg       Config
	exitWords map[string]struct{}
}

// New creates a turn controller.
func New(p persona.Persona, completer Completer, cfg Config) *Controller {
	exitWords := make(map[string]struct{}, len(p.ExitKeywords))
	for _, word := range p.ExitKeywords {
		exitWords[fold(strings.TrimSpace(word))] = struct{}{}
	}
	return &Controller{
		persona:   p,
		completer: completer,
		cfg:       cfg,
		exitWords: exitWords,
	}
}

// IsExit reports whether text is one of the farewell keywords, ignoring case.
func (c *Controller) IsExit(text string) bool {
	_, ok := c.exitWords[fold(strings.TrimSpace(text))]
	return ok
}

// Submit handles one user submission against st, drawing progress on r.
// Model failures settle the turn with an error message and are reported in Outcome.Err;
// the returned error is reserved for submissions that were never handled or were superseded.
func (c *Controller) Submit(ctx context.Context, st *chatservice.State, text string, r Renderer) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{Phase: PhaseIdle}, ErrEmptyMessage
	}
	if r == nil {
		r = Discard
	}

	turnCtx, turn, err := st.BeginTurn(ctx)
	if err != nil {
		return Outcome{Phase: PhaseIdle}, err
	}
	defer turn.End()

	sessionID := st.Session().ID

	if c.IsExit(text) {
		return c.farewell(turnCtx, turn, text, r)
	}

	// Submitted
	if err := turn.AppendUser(text); err != nil {
		return Outcome{Phase: PhaseSubmitted}, err
	}
	c.render(turnCtx, r, Frame{Kind: FrameUser, Text: text})

	// AwaitingModel
	c.render(turnCtx, r, Frame{Kind: FrameThinking, Text: c.persona.ThinkingText, Avatar: c.persona.Icon})
	reply, streamed, err := c.complete(turnCtx, turn.Prompt(), r)
	if err != nil {
		if turnCtx.Err() != nil {
			// Cancelled by a reset, not by the model.
			return Outcome{Phase: PhaseAwaitingModel}, chatservice.ErrTurnSuperseded
		}
		return c.fail(turnCtx, turn, sessionID, err, r)
	}

	// Streaming
	if !streamed {
		if err := c.reveal(turnCtx, reply, r); err != nil {
			log.Printf("[turn] reveal interrupted for session=%s: %v", sessionID, err)
		}
	}

	decision := emotion.Analyze(reply)
	if err := turn.AppendAssistant(reply, string(decision.Mood)); err != nil {
		return Outcome{Phase: PhaseStreaming}, err
	}
	c.render(turnCtx, r, Frame{
		Kind:   FrameMessage,
		Text:   reply,
		Mood:   string(decision.Mood),
		Avatar: emotion.Avatar(decision.Mood),
	})

	return Outcome{Phase: PhaseSettled, Reply: reply, Mood: decision.Mood}, nil
}

func (c *Controller) farewell(ctx context.Context, turn *chatservice.Turn, text string, r Renderer) (Outcome, error) {
	if err := turn.AppendDisplay(chat.UserEntry(text)); err != nil {
		return Outcome{Phase: PhaseSubmitted}, err
	}
	entry := chat.AssistantEntry(c.persona.Farewell)
	entry.Mood = string(emotion.Affectionate)
	if err := turn.AppendDisplay(entry); err != nil {
		return Outcome{Phase: PhaseSubmitted}, err
	}

	c.render(ctx, r, Frame{Kind: FrameRerender, Transcript: turn.Display()})
	return Outcome{Phase: PhaseSettled, Reply: c.persona.Farewell, Mood: emotion.Affectionate, Farewell: true}, nil
}

func (c *Controller) fail(ctx context.Context, turn *chatservice.Turn, sessionID string, cause error, r Renderer) (Outcome, error) {
	log.Printf("[turn] model call failed for session=%s: %v", sessionID, cause)

	message := c.persona.ErrorMessage(cause)
	if err := turn.AppendDisplay(chat.AssistantEntry(message)); err != nil {
		return Outcome{Phase: PhaseAwaitingModel}, err
	}
	c.render(ctx, r, Frame{Kind: FrameError, Text: message, Avatar: c.persona.Icon})

	return Outcome{Phase: PhaseSettled, Reply: message, Err: cause}, nil
}

// complete calls the collaborator, streaming when configured and supported.
func (c *Controller) complete(ctx context.Context, prompt []chat.Entry, r Renderer) (string, bool, error) {
	streamer, ok := c.completer.(Streamer)
	if !ok || !c.cfg.Streaming {
		reply, err := c.completer.Complete(ctx, prompt)
		return reply, false, err
	}

	var (
		buffer    strings.Builder
		renderErr error
	)
	reply, err := streamer.StreamCompletion(ctx, prompt, func(delta string) error {
		buffer.WriteString(delta)
		if renderErr != nil {
			return nil
		}
		renderErr = r.Render(ctx, Frame{Kind: FrameDelta, Text: buffer.String() + c.cfg.Cursor})
		return nil
	})
	return reply, true, err
}

// render draws a frame; a vanished surface does not stop the turn from settling.
func (c *Controller) render(ctx context.Context, r Renderer, frame Frame) {
	if err := r.Render(ctx, frame); err != nil {
		log.Printf("[turn] render %s frame failed: %v", frame.Kind, err)
	}
}

func fold(s string) string {
	return cases.Fold().String(s)
}
