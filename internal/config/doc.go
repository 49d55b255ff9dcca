// Package config provides configuration loading, merging, and path management for bifrost.
//
// # Configuration Loading
//
// Load starts from built-in defaults and merges the following sources, later
// sources overriding earlier ones:
//
//  1. Global config (~/.config/bifrost/, XDG_CONFIG_HOME aware)
//  2. Project config (<dir>/bifrost.* then <dir>/.bifrost/bifrost.*)
//  3. BIFROST_CONFIG file
//  4. BIFROST_CONFIG_CONTENT inline JSON
//  5. <dir>/.env, loaded into the process environment without overriding it
//  6. BIFROST_* environment variables
//
// Command-line flags are applied by the caller on top of the result.
//
// # Supported Formats
//
//   - bifrost.json  - Standard JSON
//   - bifrost.jsonc - JSON with comments, processed using tidwall/jsonc
//   - bifrost.yaml / bifrost.yml - YAML, parsed with gopkg.in/yaml.v3
//
// A file that exists but does not parse is an error. Missing files are skipped.
//
// # Variable Interpolation
//
// All formats support:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents (relative to the config file directory, ~/ expanded)
//
// Example:
//
//	{
//	  // listener
//	  "port": 8008,
//	  "provider_timeout": "30s",
//	  "lsp": {
//	    "servers": {
//	      "go": {"command": ["{env:HOME}/go/bin/gopls"], "patterns": ["**/*.go"]}
//	    }
//	  }
//	}
//
// # Environment Variables
//
//   - BIFROST_PORT, BIFROST_HOST, BIFROST_LOG_LEVEL
//   - BIFROST_HEARTBEAT_INTERVAL, BIFROST_PROVIDER_TIMEOUT (Go duration strings)
//   - BIFROST_LSP_DISABLED (bool)
//
// Malformed values are reported as errors rather than silently ignored.
package config
