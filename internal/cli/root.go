// Package cli defines the cobra command of gitlab-artifact-cleanup.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
	clierrors "github.com/randalmurphal/gitlab-artifact-cleanup/errors"
)

// Exit codes.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitUsage           = 2
	ExitConfig          = 3
	ExitAuthorization   = 4
	ExitRemoteService   = 5
	ExitProjectNotFound = 6
)

// Execute runs the command with the process arguments and returns the exit code.
func Execute(ctx context.Context, version, commit, date string) int {
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, buildInfo{version, commit, date})
}

type buildInfo struct {
	version, commit, date string
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer, info buildInfo) int {
	rootCmd := newRootCmd(info)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	code := exitCode(err)
	if !errors.Is(err, errJobFailures) {
		fmt.Fprintf(errOut, "%s: %s\n", config.AppName, err) //nolint:errcheck // best-effort stderr write
	}
	if code == ExitUsage && !clierrors.IsUsageError(err) {
		fmt.Fprintf(errOut, "Run '%s --help' for usage.\n", config.AppName) //nolint:errcheck
	}
	return code
}

// usageError marks command line mistakes.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errJobFailures is returned when some jobs could not be cleaned up. The
// report already says which.
var errJobFailures = errors.New("some jobs could not be cleaned up")

func exitCode(err error) int {
	var (
		usageErr *usageError
		valueErr *config.ValueError
	)
	switch {
	case errors.As(err, &usageErr), clierrors.IsUsageError(err):
		return ExitUsage
	case errors.As(err, &valueErr):
		if valueErr.Source == config.SourceFlag {
			return ExitUsage
		}
		return ExitConfig
	case errors.Is(err, config.ErrConfigExists), errors.Is(err, clierrors.ErrInvalidConfig):
		return ExitConfig
	case clierrors.IsProjectError(err):
		return ExitProjectNotFound
	case clierrors.IsAuthError(err), clierrors.IsPermissionError(err):
		return ExitAuthorization
	case clierrors.IsRemoteError(err), clierrors.IsConnectionError(err):
		return ExitRemoteService
	default:
		return ExitFailure
	}
}

func newRootCmd(info buildInfo) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   config.AppName + " [flags] [project ...]",
		Short: "Delete old CI/CD job artifacts from GitLab projects",
		Long: `Delete old CI/CD job artifacts (and optionally job logs) from GitLab projects.

Artifacts GitLab keeps forever, because they belong to the latest commit of a
branch, to a tag or to the last successful pipeline of a failing branch, are
removed once they are older than --days-to-keep, unless --always-keep protects
them.

Projects are given as "namespace/project" paths or numeric IDs, either as
arguments or with repository_paths in the config file
(~/.config/gitlab-artifact-cleanup/config.yaml, or .gitlab-artifact-cleanup.yaml
in the git root).`,
		Version:       info.version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, opts, args)
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}}, version {{.Version}} (commit %s, built %s)\n", info.commit, info.date))
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	opts.register(rootCmd)
	return rootCmd
}
