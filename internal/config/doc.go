// Package config provides centralized configuration management for mfledger.
// It loads process settings and the fund registry, validates them, and resolves
// on-disk paths.
//
// # Configuration Sources
//
// Settings are loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern MFL_<SECTION>_<FIELD>:
//
//	MFL_SERVER_PORT=8080
//	MFL_UPDATE_YEAR=2025
//	MFL_FETCH_HEAD_TIMEOUT=3s
//	MFL_PATHS_FUNDS_FILE=/etc/mfledger/funds.yaml
//
// # Fund Registry
//
// Funds are data, not code. Each entry names the ledger workbook, an ordered
// list of locator strategies, the sheet selection and header markers, and the
// extraction mode. A built-in registry is embedded; MFL_PATHS_FUNDS_FILE
// replaces it wholesale.
//
//	reg, err := config.LoadFunds(paths.FundsFile)
//	fund, ok := reg.Find("nippon-small-cap")
//
// # Path Management
//
// Paths resolves every configured location against a root directory, the
// executable's directory by default:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	ledger := paths.LedgerPath(fund.File)
package config
