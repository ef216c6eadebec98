package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	chatService "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
	"github.com/zhouzirui/cat-chatroom/pkg/utils"
)

// Handler runs chat turns and streams their frames via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
	turns   *turn.Controller
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, turns *turn.Controller) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		turns:   turns,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event      string       `json:"event"`
	Content    string       `json:"content,omitempty"`
	SessionID  string       `json:"sessionId,omitempty"`
	Mood       string       `json:"mood,omitempty"`
	Avatar     string       `json:"avatar,omitempty"`
	Transcript []chat.Entry `json:"transcript,omitempty"`
	Finished   bool         `json:"finished,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// RegisterRoutes registers the streaming turn endpoint
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	st, err := h.chatSvc.Get(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	if err := h.HandleStreamRequest(r.Context(), w, flusher, st, userMessage); err != nil {
		log.Printf("[stream] error handling request for session=%s: %v", sessionID, err)
	}
}

// HandleStreamRequest runs one turn for st, writing every frame as an SSE chunk
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, st *chatService.State, userMessage string) error {
	sessionID := st.Session().ID
	renderer := &sseRenderer{client: ctx, w: w, flusher: flusher, sessionID: sessionID}

	if err := renderer.send(StreamResponse{Event: "start", SessionID: sessionID}); err != nil {
		return err
	}

	outcome, err := h.turns.Submit(ctx, st, userMessage, renderer)
	if err != nil {
		message := err.Error()
		if errors.Is(err, chatService.ErrTurnSuperseded) {
			message = "conversation was reset"
		}
		_ = renderer.send(StreamResponse{Event: "error", SessionID: sessionID, Error: message})
		return err
	}

	log.Printf("[stream] completed turn for session=%s, phase=%s, farewell=%t", sessionID, outcome.Phase, outcome.Farewell)
	return renderer.send(StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
}

// sseRenderer stops drawing once the client is gone; the turn itself still settles.
type sseRenderer struct {
	client    context.Context
	w         http.ResponseWriter
	flusher   http.Flusher
	sessionID string
}

func (s *sseRenderer) Render(ctx context.Context, frame turn.Frame) error {
	if err := s.client.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	resp := StreamResponse{
		Event:      string(frame.Kind),
		Content:    frame.Text,
		SessionID:  s.sessionID,
		Mood:       frame.Mood,
		Avatar:     frame.Avatar,
		Transcript: frame.Transcript,
	}
	if frame.Kind == turn.FrameError {
		resp.Error = frame.Text
	}
	return s.send(resp)
}

func (s *sseRenderer) send(resp StreamResponse) error {
	return utils.SendSSEChunk(s.w, s.flusher, resp)
}
