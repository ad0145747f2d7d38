// Package exporter writes ledgers, fund comparisons and flow reports as CSV.
//
// Files start with a UTF-8 BOM and whole files are replaced atomically.
// StreamWriter covers incremental writes.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths.ExportsDir, logger)
//	path, err := w.ExportLedger(l)
package exporter
