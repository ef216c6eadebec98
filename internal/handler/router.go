package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/cat-chatroom/internal/handler/chat"
	"github.com/zhouzirui/cat-chatroom/internal/handler/persona"
	"github.com/zhouzirui/cat-chatroom/internal/handler/stream"
	"github.com/zhouzirui/cat-chatroom/internal/handler/web"
	"github.com/zhouzirui/cat-chatroom/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/cat-chatroom/internal/middleware"
	chatService "github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
	"github.com/zhouzirui/cat-chatroom/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, turns *turn.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	web.New(chatSvc.Persona()).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"sessions": chatSvc.Count(),
			})
		})

		persona.New(chatSvc.Persona()).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc, turns).RegisterRoutes(api)
		ws.New(chatSvc, turns).RegisterRoutes(api)
	})

	return r
}
