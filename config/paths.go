package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultDataDirectory = "~/.local/share/sova"

// Defaults returns a config with every field at its built-in default.
func Defaults() *Config {
	return &Config{
		DataDirectory: defaultDataDirectory,
		Provider: ProviderConfig{
			ID:    "gigachat",
			Scope: "GIGACHAT_API_PERS",
		},
		Retrieval: RetrievalConfig{
			StoreDir: "embeddings",
		},
		Security: SecurityConfig{
			Method: string(SecurityPlainText),
		},
	}
}

// GetConfigDir returns the configuration directory, creating it if needed.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "sova")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// DefaultConfigPath returns the default config file location. Errors fall
// back to a relative path so a missing home directory does not break startup.
func DefaultConfigPath() string {
	configDir, err := GetConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(configDir, "config.toml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(ExpandPath(path))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureDataDirPermissions tightens the data directory to owner-only access.
func EnsureDataDirPermissions(dataDir string) error {
	expanded := ExpandPath(dataDir)
	if err := os.MkdirAll(expanded, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.Chmod(expanded, 0700); err != nil {
		return fmt.Errorf("failed to set data directory permissions: %w", err)
	}
	return nil
}
