package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const saveKeyFile = "save-key"

// resolveSaveKey returns SAVE_KEY when set, otherwise the key remembered under
// the user's config directory. A missing key is generated and written there.
func resolveSaveKey() (string, error) {
	if key := os.Getenv("SAVE_KEY"); key != "" {
		return state.NormalizeSaveKey(key)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return loadSaveKey(filepath.Join(dir, "adventure-engine"))
}

func loadSaveKey(dir string) (string, error) {
	path := filepath.Join(dir, saveKeyFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return state.NormalizeSaveKey(strings.TrimSpace(string(data)))
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read save key: %w", err)
	}

	key := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write save key: %w", err)
	}
	return key, nil
}
