package types

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the bifrost configuration.
// Loaded from bifrost.json / bifrost.jsonc / bifrost.yaml files.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Listener
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Logging
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"` // DEBUG|INFO|WARN|ERROR

	// CORS for browser-hosted agents; nil means enabled
	CORS *bool `json:"cors,omitempty" yaml:"cors,omitempty"`

	// SSE keep-alive comment interval
	HeartbeatInterval Duration `json:"heartbeat_interval,omitempty" yaml:"heartbeat_interval,omitempty"`

	// Bound on a single reference lookup; zero waits indefinitely
	ProviderTimeout Duration `json:"provider_timeout,omitempty" yaml:"provider_timeout,omitempty"`

	// Messages held while no event stream is connected; beyond it POST /message gets 503
	MaxPendingMessages int `json:"max_pending_messages,omitempty" yaml:"max_pending_messages,omitempty"`

	// Number of files whose lines are kept for previews
	PreviewCacheSize int `json:"preview_cache_size,omitempty" yaml:"preview_cache_size,omitempty"`

	// LSP
	LSP *LSPConfig `json:"lsp,omitempty" yaml:"lsp,omitempty"`

	// File watcher
	Watcher *WatcherConfig `json:"watcher,omitempty" yaml:"watcher,omitempty"`
}

// CORSEnabled reports whether CORS headers should be served.
func (c *Config) CORSEnabled() bool {
	return c.CORS == nil || *c.CORS
}

// LSPConfig holds LSP server configuration.
type LSPConfig struct {
	Disabled bool                       `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Servers  map[string]LSPServerConfig `json:"servers,omitempty" yaml:"servers,omitempty"`
}

// LSPServerConfig overrides or adds a language server.
type LSPServerConfig struct {
	Command  []string `json:"command,omitempty" yaml:"command,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"` // doublestar globs, e.g. "**/*.ts"
	Disabled bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Duration is a time.Duration that reads and writes as "30s" style strings.
// Plain numbers are taken as milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case int:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
	return nil
}
