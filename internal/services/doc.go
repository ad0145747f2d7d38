// Package services is the application layer shared by the HTTP API and the
// command line. Handlers and commands stay thin: they parse input, call a
// service and render the result.
//
// # Services
//
//	LedgerService   read side: fund listing, ledgers, summaries, flows,
//	                overlap, trends, fetch history and CSV exports
//	SyncService     write side: plans a sync request into funds and periods
//	                and runs it through the updater, in the foreground or as
//	                a background job whose lifecycle is broadcast to clients
//	HealthService   liveness and dependency readiness
//
// Services depend on narrow interfaces (LedgerStore, EventHistory, Runner,
// Broadcaster, ClientCounter) so tests can substitute in-memory fakes.
//
// # Errors
//
// Services return the application error taxonomy from internal/errors;
// the HTTP layer maps it onto status codes with errors.FromError.
package services
