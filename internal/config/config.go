package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// Defaults applied before any file or environment source.
const (
	DefaultPort              = 8008
	DefaultHost              = "127.0.0.1"
	DefaultLogLevel          = "INFO"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPreviewCacheSize  = 256
	DefaultMaxPending        = 1024
)

// configNames are the file names probed in every config directory, lowest
// priority first.
var configNames = []string{"bifrost.json", "bifrost.jsonc", "bifrost.yaml", "bifrost.yml"}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Default returns a configuration holding only built-in defaults.
func Default() *types.Config {
	return &types.Config{
		Port:               DefaultPort,
		Host:               DefaultHost,
		LogLevel:           DefaultLogLevel,
		HeartbeatInterval:  types.Duration(DefaultHeartbeatInterval),
		PreviewCacheSize:   DefaultPreviewCacheSize,
		MaxPendingMessages: DefaultMaxPending,
	}
}

// Load loads configuration from multiple sources (priority order):
// 1. Built-in defaults
// 2. Global config (~/.config/bifrost/)
// 3. Project config (<dir>/ and <dir>/.bifrost/)
// 4. BIFROST_CONFIG file
// 5. BIFROST_CONFIG_CONTENT inline JSON
// 6. .env in the project directory (never overrides the real environment)
// 7. Environment variables
func Load(directory string) (*types.Config, error) {
	config := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) error {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return nil
		}
		if err := loadConfigFile(path, config, baseDir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
		loaded[absPath] = true
		return nil
	}

	var candidates [][2]string

	globalPath := GetPaths().Config
	for _, name := range configNames {
		candidates = append(candidates, [2]string{filepath.Join(globalPath, name), globalPath})
	}

	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".bifrost")
		for _, name := range configNames {
			candidates = append(candidates, [2]string{filepath.Join(directory, name), directory})
		}
		for _, name := range configNames {
			candidates = append(candidates, [2]string{filepath.Join(projectConfigDir, name), projectConfigDir})
		}
	}

	if configPath := os.Getenv("BIFROST_CONFIG"); configPath != "" {
		candidates = append(candidates, [2]string{configPath, filepath.Dir(configPath)})
	}

	for _, c := range candidates {
		if err := loadOnce(c[0], c[1]); err != nil {
			return nil, err
		}
	}

	if content := os.Getenv("BIFROST_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err != nil {
			return nil, fmt.Errorf("parse BIFROST_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inline)
	}

	if directory != "" {
		// Missing .env is the common case.
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data = interpolate(data, baseDir, false)
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		data = interpolate(jsonc.ToJSON(data), baseDir, true)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
// File contents are escaped when the target is a JSON string.
func interpolate(data []byte, baseDir string, jsonEscape bool) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match
		}

		value := strings.TrimRight(string(content), "\r\n")
		if !jsonEscape {
			return value
		}
		quoted, _ := json.Marshal(value)
		return string(quoted[1 : len(quoted)-1])
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.CORS != nil {
		target.CORS = source.CORS
	}
	if source.HeartbeatInterval != 0 {
		target.HeartbeatInterval = source.HeartbeatInterval
	}
	if source.ProviderTimeout != 0 {
		target.ProviderTimeout = source.ProviderTimeout
	}
	if source.MaxPendingMessages != 0 {
		target.MaxPendingMessages = source.MaxPendingMessages
	}
	if source.PreviewCacheSize != 0 {
		target.PreviewCacheSize = source.PreviewCacheSize
	}
	if source.Watcher != nil {
		target.Watcher = source.Watcher
	}

	if source.LSP != nil {
		if target.LSP == nil {
			target.LSP = &types.LSPConfig{}
		}
		if source.LSP.Disabled {
			target.LSP.Disabled = true
		}
		if len(source.LSP.Servers) > 0 && target.LSP.Servers == nil {
			target.LSP.Servers = make(map[string]types.LSPServerConfig)
		}
		for name, server := range source.LSP.Servers {
			target.LSP.Servers[name] = server
		}
	}
}

// applyEnvOverrides applies BIFROST_* environment variables.
func applyEnvOverrides(config *types.Config) error {
	if v := os.Getenv("BIFROST_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid BIFROST_PORT %q", v)
		}
		config.Port = port
	}
	if v := os.Getenv("BIFROST_HOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("BIFROST_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("BIFROST_HEARTBEAT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BIFROST_HEARTBEAT_INTERVAL: %w", err)
		}
		config.HeartbeatInterval = types.Duration(d)
	}
	if v := os.Getenv("BIFROST_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BIFROST_PROVIDER_TIMEOUT: %w", err)
		}
		config.ProviderTimeout = types.Duration(d)
	}
	if v := os.Getenv("BIFROST_MAX_PENDING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid BIFROST_MAX_PENDING %q", v)
		}
		config.MaxPendingMessages = n
	}
	if v := os.Getenv("BIFROST_LSP_DISABLED"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BIFROST_LSP_DISABLED %q", v)
		}
		if config.LSP == nil {
			config.LSP = &types.LSPConfig{}
		}
		config.LSP.Disabled = disabled
	}
	return nil
}
