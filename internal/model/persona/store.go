package persona

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load returns the default persona, overlaid with the TOML file at path when path is set.
// defaultName replaces the built-in cat name when non-empty.
func Load(path, defaultName string) (Persona, error) {
	base := Default()
	if name := strings.TrimSpace(defaultName); name != "" {
		base.Name = name
	}

	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	var fromFile Persona
	meta, err := toml.DecodeFile(path, &fromFile)
	if err != nil {
		return Persona{}, fmt.Errorf("failed to decode persona file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Persona{}, fmt.Errorf("persona file %s has unknown keys: %v", path, undecoded)
	}

	p := fromFile.merge(base)
	if err := p.Validate(); err != nil {
		return Persona{}, fmt.Errorf("invalid persona file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the templates render.
func (p Persona) Validate() error {
	if _, err := p.renderSystemPrompt(p.Name); err != nil {
		return fmt.Errorf("system_template: %w", err)
	}
	if !strings.Contains(p.ErrorTemplate, "%v") && !strings.Contains(p.ErrorTemplate, "%s") {
		return fmt.Errorf("error_template must contain %%v or %%s")
	}
	return nil
}
