package interview

import (
	_ "embed"
	"fmt"
	"os"
)

// The interview script is process-wide immutable configuration. It is loaded
// once at startup and passed explicitly into every generation call.
//
//go:embed script.md
var defaultScript string

// LoadScript returns the interview instructions: the file at path when given,
// otherwise the embedded default.
func LoadScript(path string) (string, error) {
	if path == "" {
		return defaultScript, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read interview script: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("interview script %s is empty", path)
	}
	return string(data), nil
}
