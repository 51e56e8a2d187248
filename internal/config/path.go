package config

import (
	"os"
	"path/filepath"
)

// FileName is the config file looked up in DefaultDir.
const FileName = "config.yaml"

// DefaultDir returns the default config directory based on the host OS.
// It prefers standard locations when available and falls back to a dotdir
// in the user's home directory.
func DefaultDir() string {
	// XDG (Linux) override
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "diary")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "."
	}

	// macOS: ~/Library/Application Support/Diary
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Diary")
	}

	// Windows: %USERPROFILE%/AppData/Roaming/Diary
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Roaming", "Diary")
	}

	// Linux without XDG_CONFIG_HOME: ~/.config/diary
	if isDir(filepath.Join(homeDir, ".config")) {
		return filepath.Join(homeDir, ".config", "diary")
	}

	// Fallback: ~/.diary
	return filepath.Join(homeDir, ".diary")
}

// DefaultPath is DefaultDir joined with FileName.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), FileName)
}

// Resolve picks the config file to load: explicit wins, otherwise
// DefaultPath if it exists, otherwise "" (built-in defaults).
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := DefaultPath(); isFile(p) {
		return p
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
