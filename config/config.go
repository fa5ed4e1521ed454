package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResolverConfig configures the hierarchical config resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to upper-cased key names for environment lookup.
	EnvPrefix string

	// GlobalPath is the global config file. Empty disables the layer.
	GlobalPath string

	// LocalConfigName is the filename of the local config in the git root.
	LocalConfigName string

	// Defaults provides the default values; its keys are the known keys.
	Defaults map[string]string

	// GitRootFinder finds the git root starting at a directory.
	// If nil, the nearest parent holding a .git directory is used.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter receives warnings. Defaults to os.Stderr.
	ErrWriter io.Writer
}

// Resolver merges configuration layers.
type Resolver struct {
	config     ResolverConfig
	globalPath string
	localPath  string
	gitRoot    string

	// Warnings collects non-fatal issues found while resolving.
	Warnings []string
}

// NewResolver creates a resolver, detecting the git root from the working
// directory.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{config: cfg, globalPath: cfg.GlobalPath}
	if r.config.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}

	root := ""
	if cfg.GitRootFinder != nil {
		if found, err := cfg.GitRootFinder("."); err == nil {
			root = found
		}
	} else {
		root = findGitRoot(".")
	}
	if root != "" {
		r.gitRoot = root
		if cfg.LocalConfigName != "" {
			r.localPath = filepath.Join(root, cfg.LocalConfigName)
		}
	}
	return r
}

// NewResolverWithPaths creates a resolver with explicit file paths.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath string) *Resolver {
	r := &Resolver{config: cfg, globalPath: globalPath, localPath: localPath}
	if r.config.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}
	return r
}

func (r *Resolver) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
}

// Resolve merges defaults, global file, local file and environment.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}
	for key, value := range r.config.Defaults {
		cfg.set(key, value, SourceDefault)
	}
	r.applyFile(cfg, r.globalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)
	r.applyEnv(cfg)
	return cfg
}

// ResolveWithFlags resolves and then applies flag values on top. Flags with an
// empty value are treated as unset.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			cfg.set(key, value, SourceFlag)
		}
	}
	return cfg
}

func (r *Resolver) applyFile(cfg *Resolved, path string, source Source) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return // a missing file is not an error
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn("could not parse %s: %v", path, err)
		return
	}

	keys := make([]string, 0, len(parsed))
	for key := range parsed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !r.known(key) {
			r.warn("unknown key %q in %s", key, path)
			continue
		}
		value, ok := toString(parsed[key])
		if !ok {
			r.warn("key %q in %s must be a scalar", key, path)
			continue
		}
		if value != "" {
			cfg.set(key, value, source)
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	if r.config.EnvPrefix != "" {
		for key := range r.config.Defaults {
			envKey := r.config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
			if value, ok := os.LookupEnv(envKey); ok && value != "" {
				cfg.set(key, value, SourceEnv)
			}
		}
	}

	// https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.set("no_color", "true", SourceEnv)
	}
}

func (r *Resolver) known(key string) bool {
	if len(r.config.Defaults) == 0 {
		return true
	}
	_, ok := r.config.Defaults[key]
	return ok
}

// GitRoot returns the detected git root directory.
func (r *Resolver) GitRoot() string {
	return r.gitRoot
}

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string {
	return r.globalPath
}

// LocalPath returns the path to the local config file.
func (r *Resolver) LocalPath() string {
	return r.localPath
}

// Resolved holds the merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

func (c *Resolved) set(key, value string, source Source) {
	c.values[key] = value
	c.sources[key] = source
}

// Get returns the value for a key, or "" if unset.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns where a key's value came from.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// Bool parses a boolean value. Besides strconv's forms it accepts yes/no and
// on/off. An unset key is false.
func (c *Resolved) Bool(key string) (bool, error) {
	raw := strings.TrimSpace(c.values[key])
	switch strings.ToLower(raw) {
	case "":
		return false, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ValueError{Key: key, Value: raw, Source: c.sources[key], Want: "a boolean"}
	}
	return v, nil
}

// Int parses an integer value. An unset key is 0.
func (c *Resolved) Int(key string) (int, error) {
	raw := strings.TrimSpace(c.values[key])
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValueError{Key: key, Value: raw, Source: c.sources[key], Want: "an integer"}
	}
	return v, nil
}

// Fields splits a whitespace separated value.
func (c *Resolved) Fields(key string) []string {
	return strings.Fields(c.values[key])
}

// Keys returns all configured keys, sorted.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int, int64, float64:
		return fmt.Sprintf("%v", val), true
	case []any:
		// repository_paths may be written as a YAML list.
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := toString(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}

// findGitRoot returns the nearest parent of startDir holding a .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
