package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	chatservice "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second

	// maxPendingTurns bounds the messages waiting behind the running turn.
	maxPendingTurns = 16
)

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc  *chatservice.Service
	turns    *turn.Controller
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, turns *turn.Controller) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		turns:   turns,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 用户输入
type TextMessage struct {
	Text string `json:"text"`
}

// ResetMessage 清空聊天记录
type ResetMessage struct {
	PersonaName string `json:"personaName"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn 串行化写操作；消息按到达顺序进入 pending，由单个 worker 依次处理，
// 读循环因此可以在轮次进行中处理重置。
type conn struct {
	ws        *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
	pending   chan string
	// done is cancelled when the connection closes.
	done context.Context
}

func (c *conn) send(msgType string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *conn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		log.Printf("[ws] write error failed: %v", err)
	}
}

// Render implements turn.Renderer.
func (c *conn) Render(ctx context.Context, frame turn.Frame) error {
	if err := c.done.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send("frame", frame)
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	log.Printf("[ws] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, sessionID: sessionID, pending: make(chan string, maxPendingTurns), done: ctx}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		h.turnWorker(ctx, c)
	}()
	defer func() {
		cancel()
		close(c.pending)
		<-workerDone
	}()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, ws)

	if err := c.send("connected", map[string]any{"transcript": h.displayOf(ctx, sessionID)}); err != nil {
		log.Printf("[ws] write connected failed: %v", err)
		return
	}

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, c, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var payload TextMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.sendError("invalid message payload")
			return
		}
		select {
		case c.pending <- payload.Text:
		default:
			c.sendError("too many pending messages")
		}
	case "reset":
		var payload ResetMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				c.sendError("invalid reset payload")
				return
			}
		}
		st := h.chatSvc.Reset(ctx, c.sessionID, payload.PersonaName)
		if err := c.send("reset", map[string]any{
			"session":    st.Session(),
			"welcome":    h.chatSvc.Persona().WelcomeLine(st.Session().PersonaName),
			"transcript": []chat.Entry{},
		}); err != nil {
			log.Printf("[ws] write reset failed: %v", err)
		}
	case "ping":
		if err := c.send("pong", nil); err != nil {
			log.Printf("[ws] write pong failed: %v", err)
		}
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// turnWorker runs queued messages one at a time in arrival order.
func (h *Handler) turnWorker(ctx context.Context, c *conn) {
	for text := range c.pending {
		if ctx.Err() != nil {
			// Connection gone; drop turns that never started.
			continue
		}
		st, err := h.chatSvc.Get(ctx, c.sessionID)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		h.runTurn(ctx, c, st, text)
	}
}

func (h *Handler) runTurn(ctx context.Context, c *conn, st *chatservice.State, text string) {
	outcome, err := h.turns.Submit(ctx, st, text, c)
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrEmptyMessage):
			c.sendError("message is empty")
		case errors.Is(err, chatservice.ErrTurnSuperseded), errors.Is(err, context.Canceled):
			log.Printf("[ws] turn dropped for session=%s: %v", c.sessionID, err)
		default:
			c.sendError(err.Error())
		}
		return
	}

	if err := c.send("end", map[string]any{"farewell": outcome.Farewell}); err != nil {
		log.Printf("[ws] write end failed: %v", err)
	}
}

func (h *Handler) displayOf(ctx context.Context, sessionID string) []chat.Entry {
	st, err := h.chatSvc.Get(ctx, sessionID)
	if err != nil {
		return []chat.Entry{}
	}
	if display := st.Display(); len(display) > 0 {
		return display
	}
	return []chat.Entry{}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
