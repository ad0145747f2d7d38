package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"mfledger/internal/config"
	"mfledger/internal/infrastructure"
	"mfledger/pkg/contracts"
)

// ClientCounter reports connected live clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   contracts.VersionInfo    `json:"version"`
	Uptime    float64                  `json:"uptime_seconds"`
	Runtime   map[string]any           `json:"runtime"`
	Services  map[string]ServiceHealth `json:"services"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService provides health check functionality
type HealthService struct {
	funds     *config.FundRegistry
	ledgerDir string
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. clients may be nil.
func NewHealthService(funds *config.FundRegistry, ledgerDir string, clients ClientCounter, logger *slog.Logger) *HealthService {
	return &HealthService{
		funds:     funds,
		ledgerDir: ledgerDir,
		clients:   clients,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck reports "ok" when every dependency is ready, "degraded" otherwise.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.GetVersionInfo(),
		Uptime:    time.Since(hs.startTime).Seconds(),
		Runtime: map[string]any{
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]ServiceHealth{
			"funds":   hs.checkFunds(),
			"ledgers": hs.checkLedgerDir(),
		},
	}
	if hs.clients != nil {
		status.Runtime["websocket_clients"] = hs.clients.ClientCount()
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "degraded"
			break
		}
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkFunds() ServiceHealth {
	if hs.funds == nil || len(hs.funds.Funds) == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no funds registered"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d funds registered", len(hs.funds.Funds))}
}

func (hs *HealthService) checkLedgerDir() ServiceHealth {
	info, err := os.Stat(hs.ledgerDir)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("ledger directory unavailable: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: "not_ready", Message: "ledger path is not a directory"}
	}
	return ServiceHealth{Status: "ready"}
}
