// Package domain holds the data contracts shared across the ingestion pipeline:
// the canonical holdings record and the calendar period.
package domain
