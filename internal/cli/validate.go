package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/dalle-mcp-server/internal/auth"
)

// ResolveDirectory returns the absolute form of dirPath. A missing directory
// is accepted, since sweeping or inspecting it is a no-op; an existing path
// that is not a directory is rejected.
func ResolveDirectory(dirPath string) (string, error) {
	if dirPath == "" {
		return "", errors.New("directory is required")
	}

	info, err := os.Stat(dirPath)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%s is not a directory", dirPath)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to access %s: %w", dirPath, err)
	}

	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return dirPath, nil
	}
	return absPath, nil
}

// ValidationHint turns an API key problem into a message that tells the user
// what to do next.
func ValidationHint(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Unexpected error during API key validation"
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key configured. Set OPENAI_API_KEY or SSM_API_KEY_PARAM, or store it in ~/.dalle-mcp/credentials.gpg"
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}
