package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mfledger/internal/analysis"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/middleware"
	"mfledger/internal/services"
)

var classFlags = map[string]analysis.Class{
	"overlap":  analysis.ClassOverlap,
	"unique_a": analysis.ClassUniqueA,
	"unique_b": analysis.ClassUniqueB,
}

func (c *cli) syncCmd() *cobra.Command {
	var req services.SyncRequest
	cmd := &cobra.Command{
		Use:   "sync [fund...]",
		Short: "Download missing periods and merge them into the ledgers",
		Long: `Fetches every month of the year not yet present in each fund's ledger.
Without --through the months run up to the latest one normally published.
Funds may be given as arguments or with --fund; none means all funds.`,
		Example: `  mfledger sync
  mfledger sync ppfas-flexi-cap --year 2024
  mfledger sync --fund nippon-small-cap --through 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req.Funds = append(req.Funds, args...)
			if err := middleware.NewValidator().Struct(req); err != nil {
				return err
			}
			job, err := c.app.SyncService.Run(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(job.Results))
			for _, r := range job.Results {
				errText := r.Error
				if r.Cancelled && errText == "" {
					errText = "cancelled"
				}
				rows = append(rows, []string{r.Fund, periodList(r.Added), periodList(r.Skipped), periodList(r.Failed), errText})
			}
			fmt.Fprintln(out)
			renderTable(out, []string{"Fund", "Added", "Skipped", "Empty", "Error"}, rows)

			var elapsed time.Duration
			if job.FinishedAt != nil {
				elapsed = job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond)
			}
			note(out, "job %s %s in %s", job.ID, job.Status, elapsed)
			if job.Status != services.JobCompleted {
				return fmt.Errorf("sync %s: %s", job.Status, job.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&req.Funds, "fund", nil, "fund id or name (repeatable)")
	cmd.Flags().IntVar(&req.Year, "year", 0, "calendar year to sync (default: update.year)")
	cmd.Flags().IntVar(&req.Through, "through", 0, "last month number to sync, 1-12")
	return cmd
}

func (c *cli) fundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "funds",
		Short: "List configured funds and their ledger state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			funds, err := c.app.LedgerService.Funds(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(funds))
			for _, f := range funds {
				latest := "-"
				if f.Latest != nil {
					latest = f.Latest.String()
				}
				rows = append(rows, []string{f.ID, f.Name, strconv.Itoa(f.Periods), latest, f.File})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Periods", "Latest", "Ledger"}, rows, 2)
			return nil
		},
	}
}

func (c *cli) summaryCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "summary <fund>",
		Short: "Show headline figures and the largest positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 1 || top > 100 {
				return apperrors.NewAppValidationError("--top must be between 1 and 100")
			}
			view, err := c.app.LedgerService.Summary(cmd.Context(), args[0], top)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			title(out, "%s, %s", view.Fund, view.Latest)
			fmt.Fprintf(out, "Periods:          %d\n", view.Periods)
			fmt.Fprintf(out, "Active positions: %d\n", view.ActivePositions)
			fmt.Fprintf(out, "Total quantity:   %s (%s%% vs previous)\n", formatQty(view.TotalQuantity), view.ChangePercent.StringFixed(2))
			if view.TopHolding != nil {
				fmt.Fprintf(out, "Top holding:      %s %s\n", view.TopHolding.ISIN, view.TopHolding.Name)
			}

			rows := make([][]string, 0, len(view.Top))
			for i, p := range view.Top {
				rows = append(rows, []string{strconv.Itoa(i + 1), p.ISIN, p.Name, formatQty(p.Quantity)})
			}
			renderTable(out, []string{"#", "ISIN", "Security", "Quantity"}, rows, 0, 3)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of positions to list")
	return cmd
}

func (c *cli) flowsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "flows <fund>",
		Short: "List securities entered and exited in a period",
		Long: `Compares a period with the one stored before it. Without --period the two
newest periods are used. Periods are written as 2025-03, March_2025 or Mar-2025.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.LedgerService.Flows(cmd.Context(), args[0], period)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.NoPriorPeriod {
				title(out, "%s, %s", report.Fund, report.Current)
				note(out, "no prior period to compare against")
			} else {
				title(out, "%s, %s vs %s", report.Fund, report.Current, report.Previous)
			}

			rows := make([][]string, 0, len(report.Entries)+len(report.Exits))
			for _, p := range report.Entries {
				rows = append(rows, []string{"entry", p.ISIN, p.Name, formatQty(p.Quantity)})
			}
			for _, p := range report.Exits {
				rows = append(rows, []string{"exit", p.ISIN, p.Name, formatQty(p.Quantity)})
			}
			renderTable(out, []string{"Flow", "ISIN", "Security", "Quantity"}, rows, 3)
			note(out, "%d entries, %d exits", len(report.Entries), len(report.Exits))
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "period to report (default: latest)")
	return cmd
}

func (c *cli) compareCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "compare <fund-a> <fund-b>",
		Short: "Show the overlap between two funds' latest holdings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter analysis.Class
			if class != "" {
				f, ok := classFlags[class]
				if !ok {
					return apperrors.NewAppValidationError("--class must be one of: overlap, unique_a, unique_b")
				}
				filter = f
			}

			cmp, err := c.app.LedgerService.Compare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			result := cmp.Rows
			if filter != "" {
				result = cmp.Filter(filter)
			}

			out := cmd.OutOrStdout()
			title(out, "A: %s (%s)  B: %s (%s)", cmp.FundA, cmp.PeriodA, cmp.FundB, cmp.PeriodB)
			rows := make([][]string, 0, len(result))
			for _, r := range result {
				rows = append(rows, []string{r.ISIN, r.Name, formatQty(r.QtyA), formatQty(r.QtyB), string(r.Class)})
			}
			renderTable(out, []string{"ISIN", "Security", "Qty A", "Qty B", "Class"}, rows, 2, 3)
			note(out, "overlap %d, unique to A %d, unique to B %d", cmp.Counts.Overlap, cmp.Counts.UniqueA, cmp.Counts.UniqueB)
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only list overlap, unique_a or unique_b")
	return cmd
}

func (c *cli) trendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend <fund> <isin>",
		Short: "Show one security's quantity in every stored period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := c.app.LedgerService.Trend(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{p.Period.String(), formatQty(p.Quantity)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Period", "Quantity"}, rows, 1)
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <fund>",
		Short: "Show recent fetch attempts from the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.app.LedgerService.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Time.Local().Format(time.DateTime),
					e.Period.String(),
					string(e.Kind),
					strconv.Itoa(e.Rows),
					e.Strategy,
					e.Reason,
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"Time", "Period", "Event", "Rows", "Strategy", "Reason"}, rows, 3)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show; 0 shows all")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write CSV files to the exports directory",
	}

	done := func(cmd *cobra.Command, path string) {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ledger <fund>",
		Short: "Export a fund's full ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.app.LedgerService.ExportLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			done(cmd, path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "compare <fund-a> <fund-b>",
		Short: "Export the overlap of two funds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.app.LedgerService.ExportComparison(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			done(cmd, path)
			return nil
		},
	})

	var period string
	flows := &cobra.Command{
		Use:   "flows <fund>",
		Short: "Export a period's entries and exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.app.LedgerService.ExportFlows(cmd.Context(), args[0], period)
			if err != nil {
				return err
			}
			done(cmd, path)
			return nil
		},
	}
	flows.Flags().StringVar(&period, "period", "", "period to report (default: latest)")
	cmd.AddCommand(flows)

	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket progress feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Run stops and closes the application itself.
			a := c.app
			c.app = nil
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&c.port, "port", 0, "listen port (default: server.port)")
	return cmd
}
