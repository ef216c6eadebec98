package turn

import (
	"context"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
)

// FrameKind names what a surface should draw.
type FrameKind string

const (
	// FrameUser draws the user's bubble.
	FrameUser FrameKind = "user"
	// FrameThinking draws the placeholder shown while the model is working.
	FrameThinking FrameKind = "thinking"
	// FrameDelta replaces the assistant bubble with partially revealed text.
	FrameDelta FrameKind = "delta"
	// FrameMessage replaces the assistant bubble with the settled reply.
	FrameMessage FrameKind = "message"
	// FrameError replaces the assistant bubble with the failure text.
	FrameError FrameKind = "error"
	// FrameRerender redraws the whole display transcript.
	FrameRerender FrameKind = "rerender"
)

// Frame is one render instruction emitted while a turn runs.
type Frame struct {
	Kind       FrameKind    `json:"kind"`
	Text       string       `json:"text,omitempty"`
	Mood       string       `json:"mood,omitempty"`
	Avatar     string       `json:"avatar,omitempty"`
	Transcript []chat.Entry `json:"transcript,omitempty"`
}

// Renderer draws frames on a surface. A returned error means the surface is gone.
type Renderer interface {
	Render(ctx context.Context, frame Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, frame Frame) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// Discard is a Renderer that draws nothing.
var Discard Renderer = RendererFunc(func(context.Context, Frame) error { return nil })
