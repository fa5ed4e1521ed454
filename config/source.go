package config

// Source indicates where a configuration value came from.
type Source string

// Configuration sources, lowest precedence first.
const (
	// SourceDefault is a built-in default.
	SourceDefault Source = "default"

	// SourceGlobal is ~/.config/gitlab-artifact-cleanup/config.yaml.
	SourceGlobal Source = "global"

	// SourceLocal is .gitlab-artifact-cleanup.yaml in the git root.
	SourceLocal Source = "local"

	// SourceEnv is a GITLAB_ARTIFACT_CLEANUP_* environment variable.
	SourceEnv Source = "env"

	// SourceFlag is a command-line flag.
	SourceFlag Source = "flag"
)
