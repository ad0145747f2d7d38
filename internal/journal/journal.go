// Package journal keeps an append-only SQLite record of period fetch events.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/fetcher"
	"mfledger/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	fund       TEXT    NOT NULL,
	year       INTEGER NOT NULL,
	month      INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	row_count  INTEGER NOT NULL DEFAULT 0,
	strategy   TEXT    NOT NULL DEFAULT '',
	url        TEXT    NOT NULL DEFAULT '',
	reason     TEXT    NOT NULL DEFAULT '',
	error_type TEXT    NOT NULL DEFAULT '',
	trace_id   TEXT    NOT NULL DEFAULT '',
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_events_fund ON fetch_events (fund, id);
`

// Journal is the event store. It satisfies fetcher.Sink.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the journal database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("create journal directory", err).WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError("open journal", err).WithContext("path", path)
	}
	// SQLite allows one writer; funds record events concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("create journal schema", err).WithContext("path", path)
	}
	return &Journal{db: db, logger: logger.With("component", "journal")}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, e fetcher.Event) error {
	created := e.Time
	if created.IsZero() {
		created = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO fetch_events (fund, year, month, kind, row_count, strategy, url, reason, error_type, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Fund, e.Period.Year, int(e.Period.Month), string(e.Kind), e.Rows,
		e.Strategy, e.URL, e.Reason, e.ErrorType, e.TraceID,
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperrors.NewStorageError("insert journal event", err).WithContext("fund", e.Fund)
	}
	return nil
}

// HandleEvent records e, logging failures instead of returning them.
func (j *Journal) HandleEvent(ctx context.Context, e fetcher.Event) {
	if err := j.Record(context.WithoutCancel(ctx), e); err != nil {
		j.logger.ErrorContext(ctx, "Failed to journal event",
			slog.String("fund", e.Fund),
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()))
	}
}

// Entry is one journaled event.
type Entry struct {
	ID int64 `json:"id"`
	fetcher.Event
}

// History returns a fund's most recent events, newest first. A limit <= 0
// returns every event.
func (j *Journal) History(ctx context.Context, fund string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, fund, year, month, kind, row_count, strategy, url, reason, error_type, trace_id, created_at
		FROM fetch_events
		WHERE fund = ?
		ORDER BY id DESC
		LIMIT ?`, fund, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("query journal", err).WithContext("fund", fund)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			year, month int
			kind, stamp string
		)
		if err := rows.Scan(&e.ID, &e.Fund, &year, &month, &kind, &e.Rows,
			&e.Strategy, &e.URL, &e.Reason, &e.ErrorType, &e.TraceID, &stamp); err != nil {
			return nil, apperrors.NewStorageError("scan journal row", err)
		}
		e.Period = domain.Period{Year: year, Month: time.Month(month)}
		e.Kind = fetcher.EventKind(kind)
		if e.Time, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("bad timestamp %q", stamp), err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate journal", err)
	}
	return out, nil
}

// LastSucceeded returns the newest period successfully fetched for fund.
func (j *Journal) LastSucceeded(ctx context.Context, fund string) (domain.Period, bool, error) {
	var year, month int
	err := j.db.QueryRowContext(ctx, `
		SELECT year, month FROM fetch_events
		WHERE fund = ? AND kind = ?
		ORDER BY year DESC, month DESC
		LIMIT 1`, fund, string(fetcher.EventSucceeded)).Scan(&year, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Period{}, false, nil
	}
	if err != nil {
		return domain.Period{}, false, apperrors.NewStorageError("query last success", err).WithContext("fund", fund)
	}
	return domain.Period{Year: year, Month: time.Month(month)}, true, nil
}
