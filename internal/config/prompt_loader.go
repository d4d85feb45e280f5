package config

import (
	"fmt"
	"os"
	"path/filepath"

	"shipclass/internal/util"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/shipclass/prompts"

// LoadPromptContent resolves the path for a prompt template and reads its content.
// An empty configuredPath returns "" so the caller falls back to the built-in template.
// Absolute paths and paths that exist relative to the working directory are used directly;
// any other relative path is treated as a filename within ~/.config/shipclass/prompts/.
func LoadPromptContent(configuredPath string) (string, error) {
	if configuredPath == "" {
		return "", nil
	}

	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		if _, err := os.Stat(configuredPath); err != nil {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			finalPath = filepath.Join(homeDir, defaultPromptDir, configuredPath)
		}
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("prompt file not found at '%s'. Please create it or fix classifier.prompt_template in config.yaml: %w", finalPath, err)
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}

	return util.CleanFileContent(promptBytes, finalPath)
}
