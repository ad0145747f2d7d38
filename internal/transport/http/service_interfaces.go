package http

import (
	"context"

	"mfledger/internal/analysis"
	"mfledger/internal/journal"
	"mfledger/internal/ledger"
	"mfledger/internal/services"
)

// LedgerServiceInterface is the read side the fund and compare handlers use.
type LedgerServiceInterface interface {
	Funds(ctx context.Context) ([]services.FundInfo, error)
	Ledger(ctx context.Context, fund string) (*ledger.Ledger, error)
	LedgerView(ctx context.Context, fund string) (*services.LedgerView, error)
	Summary(ctx context.Context, fund string, top int) (*services.SummaryView, error)
	Flows(ctx context.Context, fund, period string) (*analysis.FlowReport, error)
	Compare(ctx context.Context, fundA, fundB string) (*analysis.Comparison, error)
	Trend(ctx context.Context, fund, isin string) ([]analysis.TrendPoint, error)
	History(ctx context.Context, fund string, limit int) ([]journal.Entry, error)
}

// SyncServiceInterface starts and reports on background sync jobs.
type SyncServiceInterface interface {
	Start(ctx context.Context, req services.SyncRequest) (*services.SyncJob, error)
	Job(id string) (*services.SyncJob, error)
	Jobs() []*services.SyncJob
}

// HealthServiceInterface reports service health.
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
}
