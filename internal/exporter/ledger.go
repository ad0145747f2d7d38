package exporter

import (
	"fmt"

	"mfledger/internal/analysis"
	"mfledger/internal/ledger"
)

// Header names shared with the ledger workbook.
const (
	headerISIN = "ISIN"
	headerName = "Stock Name"
)

// LedgerRecords flattens l into a header and one record per security, using
// the ledger's column order.
func LedgerRecords(l *ledger.Ledger) WriteOptions {
	cols := l.Columns()
	headers := append([]string{headerISIN, headerName}, cols...)

	rows := l.Rows()
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := make([]string, 0, len(headers))
		rec = append(rec, r.ISIN, r.Name)
		for _, c := range cols {
			rec = append(rec, formatCell(r.Cells[c]))
		}
		records = append(records, rec)
	}
	return WriteOptions{Headers: headers, Records: records, BOMPrefix: true}
}

// ComparisonRecords flattens an overlap comparison.
func ComparisonRecords(c *analysis.Comparison) WriteOptions {
	headers := []string{
		headerISIN, headerName,
		fmt.Sprintf("%s Qty (%s)", c.FundA, c.PeriodA.Label()),
		fmt.Sprintf("%s Qty (%s)", c.FundB, c.PeriodB.Label()),
		"Class",
	}
	records := make([][]string, 0, len(c.Rows))
	for _, r := range c.Rows {
		records = append(records, []string{r.ISIN, r.Name, r.QtyA.String(), r.QtyB.String(), string(r.Class)})
	}
	return WriteOptions{Headers: headers, Records: records, BOMPrefix: true}
}

// FlowRecords flattens a flow report; entries precede exits.
func FlowRecords(r *analysis.FlowReport) WriteOptions {
	headers := []string{"Direction", headerISIN, headerName, "Quantity"}
	records := make([][]string, 0, len(r.Entries)+len(r.Exits))
	for _, p := range r.Entries {
		records = append(records, []string{"entry", p.ISIN, p.Name, p.Quantity.String()})
	}
	for _, p := range r.Exits {
		records = append(records, []string{"exit", p.ISIN, p.Name, p.Quantity.String()})
	}
	return WriteOptions{Headers: headers, Records: records, BOMPrefix: true}
}

// ExportLedger writes l to <fund>_ledger.csv and returns the path.
func (w *CSVWriter) ExportLedger(l *ledger.Ledger) (string, error) {
	return w.WriteCSV(l.Fund+"_ledger.csv", LedgerRecords(l))
}

// ExportComparison writes c to <a>_vs_<b>_<periodA>.csv and returns the path.
func (w *CSVWriter) ExportComparison(c *analysis.Comparison) (string, error) {
	name := fmt.Sprintf("%s_vs_%s_%s.csv", c.FundA, c.FundB, c.PeriodA.Label())
	return w.WriteCSV(name, ComparisonRecords(c))
}

// ExportFlows writes r to <fund>_flows_<period>.csv and returns the path.
func (w *CSVWriter) ExportFlows(r *analysis.FlowReport) (string, error) {
	name := fmt.Sprintf("%s_flows_%s.csv", r.Fund, r.Current.Label())
	return w.WriteCSV(name, FlowRecords(r))
}
