// Package config loads assembly configuration from YAML or JSON files with
// environment variable overrides, layered as defaults, then file, then
// environment. A Watcher can poll the loaded file and push reloaded
// configurations to subscribers.
package config
