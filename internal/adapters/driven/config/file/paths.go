package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the docreview home directory.
const HomeEnv = "DOCREVIEW_HOME"

// HomeDir returns the docreview home directory.
func HomeDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".docreview"), nil
}
