package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteDefaults when the file exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

// templateEntry is one key of the default config file.
type templateEntry struct {
	key     string
	value   string
	comment string
}

func defaultTemplate() []templateEntry {
	d := Defaults()
	return []templateEntry{
		{KeyURL, d[KeyURL], "GitLab instance to talk to."},
		{KeyAccessToken, PlaceholderToken, "Access token with the api scope. Delete the line to be asked for it."},
		{KeyAuthMode, d[KeyAuthMode], "How the token is sent: private (PRIVATE-TOKEN header) or bearer."},
		{KeyRepositoryPaths, d[KeyRepositoryPaths], "Whitespace separated project paths, e.g. \"group/app group/lib\"."},
		{KeyAlwaysKeep, d[KeyAlwaysKeep], "none, branch_artifacts, tag_artifacts or branch_and_tag_artifacts."},
		{KeyDaysToKeep, d[KeyDaysToKeep], "Artifacts younger than this many days are never deleted."},
		{KeyDeleteLogs, d[KeyDeleteLogs], "Also erase job logs."},
		{KeyTreatUnexpiringAsKept, d[KeyTreatUnexpiringAsKept], "Never touch artifacts without an expiry date (the \"Keep\" button clears it)."},
		{KeyMaxRetries, d[KeyMaxRetries], "Retries on rate limiting and server errors."},
		{KeyPerPage, d[KeyPerPage], "Page size for listings (1-100)."},
		{KeyVerbosity, d[KeyVerbosity], "quiet, error, warn, verbose or debug."},
		{KeyLogFile, d[KeyLogFile], "Optional JSON log file, rotated automatically."},
		{KeyNotifyWebhookURL, d[KeyNotifyWebhookURL], "Optional URL receiving run events as JSON."},
		{KeyNotifySlackWebhook, d[KeyNotifySlackWebhook], "Optional Slack incoming webhook."},
	}
}

// DefaultsYAML renders the default config file.
func DefaultsYAML() ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range defaultTemplate() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: e.key, HeadComment: e.comment}
		val := &yaml.Node{Kind: yaml.ScalarNode, Value: e.value}
		if e.value == "" {
			val.Style = yaml.DoubleQuotedStyle
		}
		doc.Content = append(doc.Content, key, val)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefaults writes the default config file to path with owner-only
// permissions, creating the directory. An existing file is only replaced when
// force is set.
func WriteDefaults(path string, force bool) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := DefaultsYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
