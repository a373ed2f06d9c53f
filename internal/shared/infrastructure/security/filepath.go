// Package security validates user-supplied file paths before the CLI
// touches the filesystem.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// shellMetacharacters are rejected outright so a path can never smuggle
// shell syntax into log lines or error messages.
var shellMetacharacters = []string{";", "&", "|", "$", "`", "(", ")", "{", "}", "<", ">", "!", "\n", "\r"}

// ValidateFilePath cleans path, makes it absolute, and resolves symlinks
// when the target exists. It rejects empty paths and shell metacharacters.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	for _, char := range shellMetacharacters {
		if strings.Contains(path, char) {
			return "", fmt.Errorf("file path contains forbidden character %q: %s", char, path)
		}
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		cleanPath = filepath.Join(cwd, cleanPath)
	}

	resolvedPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cleanPath, nil
		}
		return "", fmt.Errorf("resolve file path: %w", err)
	}

	return resolvedPath, nil
}

// SafeReadFile reads a file after validating the path.
func SafeReadFile(path string) ([]byte, error) {
	cleanPath, err := ValidateFilePath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is validated above
	return os.ReadFile(cleanPath)
}

// SafeWriteFile writes data to a file after validating the path.
func SafeWriteFile(path string, data []byte) error {
	cleanPath, err := ValidateFilePath(path)
	if err != nil {
		return err
	}
	// #nosec G306 - exports are plain documents, not secrets
	return os.WriteFile(cleanPath, data, 0o644)
}
