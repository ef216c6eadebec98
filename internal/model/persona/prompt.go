package persona

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// SystemPrompt renders the system instruction for a cat called name.
// An empty name falls back to the persona's default name.
func (p Persona) SystemPrompt(name string) string {
	if strings.TrimSpace(name) == "" {
		name = p.Name
	}
	rendered, err := p.renderSystemPrompt(name)
	if err != nil {
		// Templates are validated at load time; this only guards hand-built personas.
		log.Printf("[persona] system template render failed, substituting name literally: %v", err)
		return strings.ReplaceAll(p.SystemTemplate, "{name}", name)
	}
	return rendered
}

// WelcomeLine renders the greeting shown above the transcript.
func (p Persona) WelcomeLine(name string) string {
	if strings.TrimSpace(name) == "" {
		name = p.Name
	}
	return strings.ReplaceAll(p.Welcome, "{name}", name)
}

// ErrorMessage formats a model failure the way the cat reports it.
func (p Persona) ErrorMessage(err error) string {
	return fmt.Sprintf(p.ErrorTemplate, err)
}

func (p Persona) renderSystemPrompt(name string) (string, error) {
	msgs, err := schema.SystemMessage(p.SystemTemplate).Format(context.Background(), map[string]any{
		"name": name,
	}, schema.FString)
	if err != nil {
		return "", err
	}
	if len(msgs) != 1 {
		return "", fmt.Errorf("unexpected message count %d", len(msgs))
	}
	return msgs[0].Content, nil
}
