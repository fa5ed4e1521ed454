// Package config resolves the tool's configuration from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags
//  2. GITLAB_ARTIFACT_CLEANUP_* environment variables (plus NO_COLOR)
//  3. .gitlab-artifact-cleanup.yaml in the git root
//  4. ~/.config/gitlab-artifact-cleanup/config.yaml
//  5. Built-in defaults
//
// Typical use:
//
//	resolved := config.NewAppResolver(os.Stderr).ResolveWithFlags(flags)
//	cfg, err := config.Load(resolved)
//	if err != nil {
//	    return err
//	}
//	policy := cfg.Policy(dryRun)
//
// Each resolved value remembers its Source, which error messages use to point
// at the file or variable that needs fixing.
//
// WriteDefaults creates a commented template. Its access_token is the
// PlaceholderToken, which Load treats as unset.
package config
