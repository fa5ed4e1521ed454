package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
	clierrors "github.com/randalmurphal/gitlab-artifact-cleanup/errors"
	"github.com/randalmurphal/gitlab-artifact-cleanup/gitlab"
	"github.com/randalmurphal/gitlab-artifact-cleanup/notify"
)

func runCleanup(cmd *cobra.Command, opts *options, args []string) error {
	if err := opts.validate(); err != nil {
		return err
	}

	// The existing config is not loaded here, so a broken file can be replaced.
	if opts.writeDefaultConfig {
		return writeDefaultConfig(cmd, opts)
	}

	resolver := config.NewAppResolver(cmd.ErrOrStderr())
	cfg, err := config.Load(resolver.ResolveWithFlags(opts.flagValues(cmd, args)))
	if err != nil {
		return clierrors.Wrap(err, "")
	}

	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if len(cfg.RepositoryPaths) == 0 {
		return clierrors.NewNoProjectsError()
	}

	token, err := cfg.RequireToken()
	if errors.Is(err, config.ErrNoToken) {
		token, err = readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	if err != nil {
		return clierrors.Wrap(err, cfg.URL)
	}

	client, err := gitlab.NewClient(gitlab.Config{
		URL:              cfg.URL,
		Token:            token,
		AuthMode:         cfg.AuthMode,
		MaxRetries:       cfg.MaxRetries,
		PerPage:          cfg.PerPage,
		KeptWhenNoExpiry: cfg.TreatUnexpiringAsKept,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if n := newNotifier(cfg, logger); n != nil {
		ctx = notify.WithNotifier(ctx, n)
	}

	cleaner := cleanup.NewCleaner(client, cleanup.WithLogger(logger))
	reports, runErr := cleaner.Run(ctx, cfg.RepositoryPaths, cfg.Policy(opts.dryRun))

	out := cmd.OutOrStdout()
	for _, r := range reports {
		if err := r.Render(out); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if runErr == nil && len(reports) > 1 {
		if err := cleanup.RenderTotals(out, reports); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			logger.Warn("interrupted")
			return context.Cause(ctx)
		}
		return clierrors.Wrap(runErr, cfg.URL)
	}
	for _, r := range reports {
		if r.HasFailures() {
			return errJobFailures
		}
	}
	return nil
}

func writeDefaultConfig(cmd *cobra.Command, opts *options) error {
	verbosity := opts.verbosity()
	if verbosity == "" {
		verbosity = config.VerbosityVerbose
	}
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), &config.Config{Verbosity: verbosity, NoColor: opts.noColor})
	if err != nil {
		return err
	}
	defer closeLog()

	path, err := config.DefaultGlobalPath()
	if err != nil {
		return fmt.Errorf("cannot place the config file: %w", err)
	}
	if err := config.WriteDefaults(path, opts.force); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Wrote a default config file to %q", path))
	return nil
}

// newNotifier builds the notifiers enabled in the config, or nil if none is.
func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.LogFile != "" {
		notifiers = append(notifiers, notify.NewLogNotifier(fileOnly(logger)))
	}
	if cfg.NotifySlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.NotifySlackWebhook))
	}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL, nil))
	}

	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return notify.NewMultiNotifier(notifiers...)
	}
}
