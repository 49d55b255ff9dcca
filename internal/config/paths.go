package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for bifrost.
type Paths struct {
	Config string // ~/.config/bifrost
	State  string // ~/.local/state/bifrost
}

// GetPaths returns the standard paths for bifrost.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "bifrost"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "bifrost"),
	}
}

// LogFile returns the path of the server log used by `serve --log-file`.
func (p *Paths) LogFile() string {
	return filepath.Join(p.State, "bifrost.log")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}
