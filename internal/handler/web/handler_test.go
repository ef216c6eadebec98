package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
)

func TestIndexRendersPersona(t *testing.T) {
	r := chi.NewRouter()
	New(persona.Default()).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{"<title>粘人小猫聊天室</title>", `value="咪咪"`, "请输入你想说的话...", "清空聊天记录"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}
