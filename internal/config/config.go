// Package config loads fsh settings: the storage root, its aliases and the
// script timeout.
//
// Files are JSONC (.fsh.json) or YAML (.fsh.yaml / .fsh.yml).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/fshandle/pkg/fs"
	"github.com/calvinalkan/fshandle/pkg/storage"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrRootEmpty          = errors.New("root cannot be empty")
	ErrScriptTimeout      = errors.New("script_timeout must be a positive duration")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Root          string            `json:"root,omitempty"           yaml:"root,omitempty"`
	Aliases       map[string]string `json:"aliases,omitempty"        yaml:"aliases,omitempty"`
	ScriptTimeout string            `json:"script_timeout,omitempty" yaml:"script_timeout,omitempty"`

	// Resolved (computed, not serialized)
	EffectiveCwd string        `json:"-" yaml:"-"` // Absolute working directory (from -C flag or os.Getwd)
	RootAbs      string        `json:"-" yaml:"-"` // Absolute storage root
	Timeout      time.Duration `json:"-" yaml:"-"` // Parsed ScriptTimeout

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-" yaml:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// DefaultScriptTimeout applies when no file sets script_timeout.
const DefaultScriptTimeout = "5s"

// Default returns the default configuration. The root defaults to the
// working directory.
func Default() Config {
	return Config{
		Root:          ".",
		ScriptTimeout: DefaultScriptTimeout,
	}
}

// ProjectFileNames are looked up in the working directory, first match wins.
var ProjectFileNames = []string{".fsh.json", ".fsh.yaml", ".fsh.yml"}

// globalPath returns $XDG_CONFIG_HOME/fsh/config.json, falling back to
// ~/.config/fsh/config.json. Empty when neither variable is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "fsh", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "fsh", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	RootOverride    string            // --root flag value; empty means no override
	Env             map[string]string // environment variables
}

// Load builds the configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/fsh/config.json)
// 3. Project config file in the working directory (.fsh.json, .fsh.yaml)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
//
// Aliases merge per token across files. Relative roots resolve against the
// working directory.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		globalCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if input.RootOverride != "" {
		cfg.Root = input.RootOverride
	}

	if cfg.Root == "" {
		return Config{}, ErrRootEmpty
	}

	cfg.Timeout, err = time.ParseDuration(cfg.ScriptTimeout)
	if err != nil || cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("%w: %q", ErrScriptTimeout, cfg.ScriptTimeout)
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.Root) {
		cfg.RootAbs = filepath.Clean(cfg.Root)
	} else {
		cfg.RootAbs = filepath.Join(workDir, cfg.Root)
	}

	return cfg, nil
}

// Tokens returns the alias tokens in sorted order.
func (c Config) Tokens() []string {
	tokens := make([]string, 0, len(c.Aliases))
	for token := range c.Aliases {
		tokens = append(tokens, token)
	}

	slices.Sort(tokens)

	return tokens
}

// OpenStorage returns a storage rooted at RootAbs with every alias registered.
func (c Config) OpenStorage(fsys fs.FS) (*storage.Storage, error) {
	st, err := storage.New(fsys, c.RootAbs)
	if err != nil {
		return nil, err
	}

	for _, token := range c.Tokens() {
		if err := st.AddAlias(token, c.Aliases[token]); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// loadProject loads the explicit config file, or the first project file
// found in workDir.
func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath != "" {
		path := configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}

		cfg, _, err := loadFile(path, true)
		if err != nil {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	for _, name := range ProjectFileNames {
		path := filepath.Join(workDir, name)

		cfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, "", err
		}

		if loaded {
			return cfg, path, nil
		}
	}

	return Config{}, "", nil
}

// loadFile loads a config file. If mustExist is false, missing files return a
// zero config and loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes data as YAML when name ends in .yaml or .yml, and as JSONC
// otherwise. An explicitly empty root is rejected.
func Parse(name string, data []byte) (Config, error) {
	var (
		cfg Config
		raw map[string]any
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid YAML: %w", err)
		}

		_ = yaml.Unmarshal(data, &raw)
	default:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JSONC: %w", err)
		}

		if err := json.Unmarshal(standardized, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid JSON: %w", err)
		}

		_ = json.Unmarshal(standardized, &raw)
	}

	if val, exists := raw["root"]; exists {
		if str, ok := val.(string); !ok || str == "" {
			return Config{}, ErrRootEmpty
		}
	}

	for token := range cfg.Aliases {
		if token == "" || strings.ContainsAny(token, "{}") {
			return Config{}, fmt.Errorf("%w: %q", storage.ErrInvalidAlias, token)
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Root != "" {
		base.Root = overlay.Root
	}

	if overlay.ScriptTimeout != "" {
		base.ScriptTimeout = overlay.ScriptTimeout
	}

	if len(overlay.Aliases) > 0 {
		aliases := make(map[string]string, len(base.Aliases)+len(overlay.Aliases))

		for token, path := range base.Aliases {
			aliases[token] = path
		}

		for token, path := range overlay.Aliases {
			aliases[token] = path
		}

		base.Aliases = aliases
	}

	return base
}
