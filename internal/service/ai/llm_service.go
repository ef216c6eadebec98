package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/cat-chatroom/internal/config"
	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

const transcriptKey = "transcript"

// Service sends whole conversation transcripts to the chat model.
type Service struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service with the chat model described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel wires an existing chat model into the transcript chain.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder(transcriptKey, false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:   cfg,
		chain: runnable,
	}, nil
}

// StreamingEnabled 指示是否使用模型的增量输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Complete returns the model's full reply to transcript.
func (s *Service) Complete(ctx context.Context, transcript []chat.Entry) (string, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(transcript))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Printf("[ai] generated response, transcript=%d, length=%d", len(transcript), len(response.Content))
	return response.Content, nil
}

// StreamCompletion streams the model's reply, calling onDelta for every non-empty chunk.
func (s *Service) StreamCompletion(ctx context.Context, transcript []chat.Entry, onDelta func(delta string) error) (string, error) {
	stream, err := s.chain.Stream(ctx, buildChainInput(transcript))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("failed to receive AI stream chunk: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if err := onDelta(chunk.Content); err != nil {
			return "", err
		}
	}

	if len(chunks) == 0 {
		return "", ErrEmptyResponse
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to concat AI stream chunks: %w", err)
	}
	if strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Printf("[ai] streamed response, transcript=%d, chunks=%d, length=%d", len(transcript), len(chunks), len(response.Content))
	return response.Content, nil
}

func buildChainInput(transcript []chat.Entry) map[string]any {
	return map[string]any{
		transcriptKey: toSchemaMessages(transcript),
	}
}

func toSchemaMessages(transcript []chat.Entry) []*schema.Message {
	messages := make([]*schema.Message, 0, len(transcript))
	for _, entry := range transcript {
		switch entry.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(entry.Content))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	return messages
}
