package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
)

// options holds the command line flags.
type options struct {
	alwaysKeep         string
	daysToKeep         int
	deleteLogs         bool
	noDeleteLogs       bool
	dryRun             bool
	gitlabURL          string
	writeDefaultConfig bool
	force              bool
	noColor            bool

	quiet, errorOnly, warn, verbose, debug bool
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.Flags()

	choices := make([]string, len(cleanup.KeepArtifactsChoices))
	for i, k := range cleanup.KeepArtifactsChoices {
		choices[i] = string(k)
	}

	f.StringVarP(&o.alwaysKeep, "always-keep", "a", "",
		"artifacts which must always be kept regardless of age ("+strings.Join(choices, ", ")+")")
	f.IntVarP(&o.daysToKeep, "days-to-keep", "k", cleanup.DefaultDaysToKeep, "number of days artifacts will always be kept")
	f.BoolVarP(&o.deleteLogs, "delete-logs", "l", false, "delete job logs as well")
	f.BoolVarP(&o.noDeleteLogs, "no-delete-logs", "L", false, "don't delete job logs")
	f.BoolVarP(&o.dryRun, "dry-run", "n", false, "only show what would be done")
	f.StringVarP(&o.gitlabURL, "gitlab-url", "u", "", "the URL of the GitLab server")
	f.BoolVarP(&o.writeDefaultConfig, "write-default-config", "w", false, "create a config file with default values and exit")
	f.BoolVar(&o.force, "force", false, "overwrite an existing config file with --write-default-config")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")

	f.BoolVarP(&o.quiet, "quiet", "q", false, "be quiet")
	f.BoolVar(&o.errorOnly, "error", false, "print error messages")
	f.BoolVar(&o.warn, "warn", false, "print warning and error messages")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "be verbose (default)")
	f.BoolVar(&o.debug, "debug", false, "print debug messages")

	_ = cmd.RegisterFlagCompletionFunc("always-keep", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return choices, cobra.ShellCompDirectiveNoFileComp
	})
}

// validate checks flag combinations cobra cannot express on its own.
func (o *options) validate() error {
	if o.deleteLogs && o.noDeleteLogs {
		return &usageError{err: fmt.Errorf("--delete-logs and --no-delete-logs are mutually exclusive")}
	}
	set := 0
	for _, b := range []bool{o.quiet, o.errorOnly, o.warn, o.verbose, o.debug} {
		if b {
			set++
		}
	}
	if set > 1 {
		return &usageError{err: fmt.Errorf("only one of --quiet, --error, --warn, --verbose and --debug may be given")}
	}
	if o.force && !o.writeDefaultConfig {
		return &usageError{err: fmt.Errorf("--force is only valid with --write-default-config")}
	}
	return nil
}

// verbosity returns the level selected by flags, or "" if none was given.
func (o *options) verbosity() string {
	switch {
	case o.quiet:
		return config.VerbosityQuiet
	case o.errorOnly:
		return config.VerbosityError
	case o.warn:
		return config.VerbosityWarn
	case o.verbose:
		return config.VerbosityVerbose
	case o.debug:
		return config.VerbosityDebug
	default:
		return ""
	}
}

// flagValues returns the config keys set on the command line.
func (o *options) flagValues(cmd *cobra.Command, args []string) map[string]string {
	flags := cmd.Flags()
	values := map[string]string{
		config.KeyVerbosity: o.verbosity(),
	}
	if flags.Changed("always-keep") {
		values[config.KeyAlwaysKeep] = o.alwaysKeep
	}
	if flags.Changed("days-to-keep") {
		values[config.KeyDaysToKeep] = strconv.Itoa(o.daysToKeep)
	}
	if o.deleteLogs {
		values[config.KeyDeleteLogs] = "true"
	}
	if o.noDeleteLogs {
		values[config.KeyDeleteLogs] = "false"
	}
	if flags.Changed("gitlab-url") {
		values[config.KeyURL] = o.gitlabURL
	}
	if o.noColor {
		values[config.KeyNoColor] = "true"
	}
	if len(args) > 0 {
		values[config.KeyRepositoryPaths] = strings.Join(args, " ")
	}
	return values
}
