package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/cat-chatroom/internal/config"
	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
)

// ErrUnavailable is reported on every turn when no chat model could be configured.
var ErrUnavailable = errors.New("AI 服务未配置")

// Unavailable stands in for the model when credentials are missing, so the chat keeps
// working and every turn settles with the error message.
type Unavailable struct {
	Reason error
}

// Complete always fails.
func (u Unavailable) Complete(context.Context, []chat.Entry) (string, error) {
	if u.Reason != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, u.Reason)
	}
	return "", ErrUnavailable
}

// Completer answers a transcript with the assistant's reply.
type Completer interface {
	Complete(ctx context.Context, transcript []chat.Entry) (string, error)
}

// NewCompleter returns the configured model service, or Unavailable when the model
// cannot be built.
func NewCompleter(ctx context.Context, cfg config.AIConfig) Completer {
	if !cfg.Enabled() {
		log.Println("[ai] 模型凭证未配置，小猫将只能回复错误提示 - 请设置 LLM_API_KEY")
		return Unavailable{}
	}

	svc, err := NewService(ctx, cfg)
	if err != nil {
		log.Printf("[ai] warning: failed to initialize AI service: %v", err)
		return Unavailable{Reason: err}
	}

	log.Printf("[ai] service initialized, model=%s, streaming=%t", cfg.Model, svc.StreamingEnabled())
	return svc
}
