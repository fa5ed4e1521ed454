package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
)

// Application identity.
const (
	AppName         = "gitlab-artifact-cleanup"
	EnvPrefix       = "GITLAB_ARTIFACT_CLEANUP_"
	LocalConfigName = ".gitlab-artifact-cleanup.yaml"
	GlobalFileName  = "config.yaml"
)

// PlaceholderToken is written by WriteDefaults and treated as no token.
const PlaceholderToken = "xxxxxxxx REPLACE OR DELETE ME! xxxxxxxx"

// Configuration keys.
const (
	KeyURL                   = "url"
	KeyAccessToken           = "access_token"
	KeyAuthMode              = "auth_mode"
	KeyRepositoryPaths       = "repository_paths"
	KeyAlwaysKeep            = "always_keep"
	KeyDaysToKeep            = "days_to_keep"
	KeyDeleteLogs            = "delete_logs"
	KeyTreatUnexpiringAsKept = "treat_unexpiring_as_kept"
	KeyMaxRetries            = "max_retries"
	KeyPerPage               = "per_page"
	KeyVerbosity             = "verbosity"
	KeyLogFile               = "log_file"
	KeyNotifyWebhookURL      = "notify_webhook_url"
	KeyNotifySlackWebhook    = "notify_slack_webhook"
	KeyNoColor               = "no_color"
)

// Verbosity levels, least output first.
const (
	VerbosityQuiet   = "quiet"
	VerbosityError   = "error"
	VerbosityWarn    = "warn"
	VerbosityVerbose = "verbose"
	VerbosityDebug   = "debug"
)

// VerbosityChoices lists the accepted verbosity levels.
var VerbosityChoices = []string{VerbosityQuiet, VerbosityError, VerbosityWarn, VerbosityVerbose, VerbosityDebug}

// Defaults returns the built-in values of every known key.
func Defaults() map[string]string {
	return map[string]string{
		KeyURL:                   "https://gitlab.com/",
		KeyAccessToken:           "",
		KeyAuthMode:              "private",
		KeyRepositoryPaths:       "",
		KeyAlwaysKeep:            string(cleanup.KeepBranchAndTagArtifacts),
		KeyDaysToKeep:            fmt.Sprint(cleanup.DefaultDaysToKeep),
		KeyDeleteLogs:            "false",
		KeyTreatUnexpiringAsKept: "true",
		KeyMaxRetries:            "3",
		KeyPerPage:               "100",
		KeyVerbosity:             VerbosityVerbose,
		KeyLogFile:               "",
		KeyNotifyWebhookURL:      "",
		KeyNotifySlackWebhook:    "",
		KeyNoColor:               "false",
	}
}

// DefaultGlobalPath returns ~/.config/gitlab-artifact-cleanup/config.yaml.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName, GlobalFileName), nil
}

// NewAppResolver creates the resolver for this tool's config layers.
func NewAppResolver(errW io.Writer) *Resolver {
	global, _ := DefaultGlobalPath()
	return NewResolver(ResolverConfig{
		EnvPrefix:       EnvPrefix,
		GlobalPath:      global,
		LocalConfigName: LocalConfigName,
		Defaults:        Defaults(),
		ErrWriter:       errW,
	})
}

// ValueError reports a configuration value that cannot be used.
type ValueError struct {
	Key    string
	Value  string
	Source Source
	Want   string
}

func (e *ValueError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("invalid %s %q (from %s config): must be %s", e.Key, e.Value, e.Source, e.Want)
	}
	return fmt.Sprintf("invalid %s %q: must be %s", e.Key, e.Value, e.Want)
}

// ErrNoToken is returned by Config.RequireToken when no usable token is set.
var ErrNoToken = errors.New("no GitLab access token is given")

// Config is the typed application configuration.
type Config struct {
	URL                   string
	AccessToken           string
	AuthMode              string
	RepositoryPaths       []string
	AlwaysKeep            cleanup.KeepArtifacts
	DaysToKeep            int
	DeleteLogs            bool
	TreatUnexpiringAsKept bool
	MaxRetries            int
	PerPage               int
	Verbosity             string
	LogFile               string
	NotifyWebhookURL      string
	NotifySlackWebhook    string
	NoColor               bool
}

// Load converts resolved values into a Config and validates it.
func Load(r *Resolved) (*Config, error) {
	cfg := &Config{
		URL:                strings.TrimSpace(r.Get(KeyURL)),
		AccessToken:        strings.TrimSpace(r.Get(KeyAccessToken)),
		AuthMode:           strings.ToLower(strings.TrimSpace(r.Get(KeyAuthMode))),
		RepositoryPaths:    r.Fields(KeyRepositoryPaths),
		Verbosity:          strings.ToLower(strings.TrimSpace(r.Get(KeyVerbosity))),
		LogFile:            strings.TrimSpace(r.Get(KeyLogFile)),
		NotifyWebhookURL:   strings.TrimSpace(r.Get(KeyNotifyWebhookURL)),
		NotifySlackWebhook: strings.TrimSpace(r.Get(KeyNotifySlackWebhook)),
	}
	if cfg.AccessToken == PlaceholderToken {
		cfg.AccessToken = ""
	}

	keep, err := cleanup.ParseKeepArtifacts(r.Get(KeyAlwaysKeep))
	if err != nil {
		return nil, &ValueError{
			Key: KeyAlwaysKeep, Value: r.Get(KeyAlwaysKeep), Source: r.Source(KeyAlwaysKeep),
			Want: "one of " + quoteAll(keepChoices()),
		}
	}
	cfg.AlwaysKeep = keep

	bools := []struct {
		key string
		dst *bool
	}{
		{KeyDeleteLogs, &cfg.DeleteLogs},
		{KeyTreatUnexpiringAsKept, &cfg.TreatUnexpiringAsKept},
		{KeyNoColor, &cfg.NoColor},
	}
	for _, b := range bools {
		if *b.dst, err = r.Bool(b.key); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{KeyDaysToKeep, &cfg.DaysToKeep},
		{KeyMaxRetries, &cfg.MaxRetries},
		{KeyPerPage, &cfg.PerPage},
	}
	for _, i := range ints {
		if *i.dst, err = r.Int(i.key); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		var valueErr *ValueError
		if errors.As(err, &valueErr) && valueErr.Source == "" {
			valueErr.Source = r.Source(valueErr.Key)
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.DaysToKeep < 0 {
		return &ValueError{Key: KeyDaysToKeep, Value: fmt.Sprint(c.DaysToKeep), Want: "zero or positive"}
	}
	if c.MaxRetries < 0 {
		return &ValueError{Key: KeyMaxRetries, Value: fmt.Sprint(c.MaxRetries), Want: "zero or positive"}
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		return &ValueError{Key: KeyPerPage, Value: fmt.Sprint(c.PerPage), Want: "between 1 and 100"}
	}
	if !contains(VerbosityChoices, c.Verbosity) {
		return &ValueError{Key: KeyVerbosity, Value: c.Verbosity, Want: "one of " + quoteAll(VerbosityChoices)}
	}
	if c.AuthMode != "private" && c.AuthMode != "bearer" {
		return &ValueError{Key: KeyAuthMode, Value: c.AuthMode, Want: `"private" or "bearer"`}
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return &ValueError{Key: KeyURL, Value: c.URL, Want: "an http(s) URL"}
	}
	return nil
}

// Policy derives the retention policy. dryRun is never read from files.
func (c *Config) Policy(dryRun bool) cleanup.Policy {
	p := cleanup.NewPolicy(c.DaysToKeep, c.AlwaysKeep)
	p.DeleteLogs = c.DeleteLogs
	p.DryRun = dryRun
	return p
}

// RequireToken returns the access token or ErrNoToken.
func (c *Config) RequireToken() (string, error) {
	if c.AccessToken == "" {
		return "", ErrNoToken
	}
	return c.AccessToken, nil
}

func keepChoices() []string {
	out := make([]string, len(cleanup.KeepArtifactsChoices))
	for i, k := range cleanup.KeepArtifactsChoices {
		out[i] = string(k)
	}
	return out
}

func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
