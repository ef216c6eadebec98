package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	chatService "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/pkg/utils"
)

// Handler 会话状态的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建会话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// SessionView 是会话及其展示记录的响应体
type SessionView struct {
	Session    chat.Session `json:"session"`
	Welcome    string       `json:"welcome"`
	Transcript []chat.Entry `json:"transcript"`
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleInitialize)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/reset", h.handleReset)
	r.Delete("/session/{sessionID}", h.handleDestroy)
}

// handleInitialize 创建会话，已存在时原样返回
func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID   string `json:"sessionId"`
		PersonaName string `json:"personaName"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, created := h.chatSvc.Initialize(r.Context(), payload.SessionID, payload.PersonaName)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondJSON(w, status, h.view(st))
}

// handleGetSession 返回会话的展示记录
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.chatSvc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.view(st))
}

// handleReset 清空聊天记录并以新名字重新开始
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaName string `json:"personaName"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.chatSvc.Reset(r.Context(), chi.URLParam(r, "sessionID"), payload.PersonaName)
	utils.RespondJSON(w, http.StatusOK, h.view(st))
}

// handleDestroy 结束会话
func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Destroy(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) view(st *chatService.State) SessionView {
	session := st.Session()
	transcript := st.Display()
	if transcript == nil {
		transcript = []chat.Entry{}
	}
	return SessionView{
		Session:    session,
		Welcome:    h.chatSvc.Persona().WelcomeLine(session.PersonaName),
		Transcript: transcript,
	}
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
