// Package http implements the JSON API handlers for fund ledgers, overlap
// comparison and sync jobs. Handlers stay thin: they parse the request, call a
// service and render the result.
//
// # Routes
//
//	GET  /api/funds                      fund list with ledger state
//	GET  /api/funds/{fund}/ledger        ledger grid (?format=csv to download)
//	GET  /api/funds/{fund}/summary       headline figures (?top=)
//	GET  /api/funds/{fund}/flows         entries and exits (?period=, ?format=csv)
//	GET  /api/funds/{fund}/history       journaled fetch events (?limit=)
//	GET  /api/funds/{fund}/trend/{isin}  one security across periods
//	GET  /api/compare?a=&b=              overlap of two funds (?class=, ?format=csv)
//	POST /api/sync                       start a background sync (202)
//	GET  /api/sync, /api/sync/{id}       job state
//
// {fund} accepts a fund id or its case-insensitive name.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Store/Journal
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// Service errors are AppErrors; the shared ErrorHandler maps their type to a
// status and renders:
//
//	{
//	    "status_code": 422,
//	    "error_code": "LEDGER_INCONSISTENCY",
//	    "message": "ledger has no quantity column",
//	    "trace_id": "5f0c..."
//	}
//
// Sync progress is not polled here; it is pushed over the websocket hub.
package http
