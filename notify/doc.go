// Package notify tells people and systems how a cleanup run went.
//
// The cleaner emits an Event when it starts on a project, when it finishes or
// fails, and for every job whose artifacts could not be deleted. A Notifier
// delivers them:
//
//   - LogNotifier writes them as structured log records
//   - SlackNotifier posts finished and failed runs to an incoming webhook
//   - WebhookNotifier posts every event as JSON to any HTTP endpoint
//   - MultiNotifier fans out to several notifiers
//   - NopNotifier drops everything
//
// The cleaner finds the notifier in its context:
//
//	ctx = notify.WithNotifier(ctx, notify.NewSlackNotifier(webhookURL))
//	reports, err := cleaner.Run(ctx, projects, policy)
//
// Delivery failures are logged and never fail a run.
package notify
