// Package app wires the mfledger components into one Application and owns
// its lifecycle.
//
// # Initialization Flow
//
//	1. Resolve paths and create the data directories
//	2. Load the fund registry
//	3. Initialize OpenTelemetry and the ingest instruments
//	4. Open the fetch journal and create the websocket hub
//	5. Build the locator deps, fetcher, ledger store and update runner
//	6. Create the services and the chi router
//
// Fetch events fan out to the journal and the hub; runner progress goes to
// the hub and, for the CLI, to an optional console callback.
//
// # Usage
//
//	a, err := app.New(ctx, cfg, logger, app.Options{})
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// Commands that only read or sync call the services on the Application and
// finish with Close. Run handles SIGINT and SIGTERM: the server drains,
// background syncs are cancelled (already merged periods stay saved), the
// hub closes its clients and telemetry is flushed.
package app
