package turn

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Separators match unicode.IsSpace; \s alone misses ideographic and no-break spaces.
var tokenPattern = regexp.MustCompile(`[\s\v\x{85}\p{Z}]*[^\s\v\x{85}\p{Z}]+`)

// Tokens splits text into whitespace-delimited tokens. Each token keeps the whitespace that
// precedes it and trailing whitespace sticks to the last token, so joining the tokens yields
// text unchanged.
func Tokens(text string) []string {
	if text == "" {
		return nil
	}

	tokens := tokenPattern.FindAllString(text, -1)
	if len(tokens) == 0 {
		return []string{text}
	}

	consumed := 0
	for _, tok := range tokens {
		consumed += len(tok)
	}
	if rest := text[consumed:]; rest != "" {
		tokens[len(tokens)-1] += rest
	}
	return tokens
}

// reveal renders text token by token with a trailing cursor, pausing between tokens.
func (c *Controller) reveal(ctx context.Context, text string, r Renderer) error {
	var buffer strings.Builder
	for _, tok := range Tokens(text) {
		buffer.WriteString(tok)
		if err := r.Render(ctx, Frame{Kind: FrameDelta, Text: buffer.String() + c.cfg.Cursor}); err != nil {
			return err
		}
		if err := c.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) pause(ctx context.Context) error {
	if c.cfg.Interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.cfg.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
