package classify

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FallbackPrompt is used when no system prompt file is available.
const FallbackPrompt = "Flag as no prompt"

// promptFile is the YAML prompt layout.
type promptFile struct {
	System string `yaml:"system"`
}

// LoadPrompt reads the system prompt. YAML files (.yaml, .yml) supply it
// under the "system" key; anything else is read as plain text. An empty
// path or a missing file yields FallbackPrompt.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return FallbackPrompt, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("classify: prompt file not found, using fallback", zap.String("path", path))
		return FallbackPrompt, nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "classify: read prompt %s", path)
	}

	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var pf promptFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return "", eris.Wrapf(err, "classify: parse prompt %s", path)
		}
		text = pf.System
	}

	if text = strings.TrimSpace(text); text == "" {
		return FallbackPrompt, nil
	}
	return text, nil
}
