package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fezalogistics/feza/internal/insights"
)

const (
	defaultTimeout     = 3 * time.Second
	defaultParallelism = 3
)

type Config struct {
	Timeout     time.Duration
	Parallelism int
}

// Source gathers a small set of aggregate figures over the clients table.
type Source struct {
	db          *sql.DB
	timeout     time.Duration
	parallelism int
}

func NewSource(db *sql.DB, cfg Config) *Source {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Source{
		db:          db,
		timeout:     timeout,
		parallelism: parallelism,
	}
}

func (s *Source) Snapshot(ctx context.Context) (insights.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	collectors := []func(context.Context) ([]insights.Metric, error){
		s.clientTotals,
		s.statusBreakdown,
		s.currencyTotals,
	}
	parts := make([][]insights.Metric, len(collectors))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)
	for i, collect := range collectors {
		group.Go(func() error {
			metrics, err := collect(groupCtx)
			if err != nil {
				return err
			}
			parts[i] = metrics
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var snapshot insights.Snapshot
	for _, part := range parts {
		snapshot = append(snapshot, part...)
	}
	return snapshot, nil
}

func (s *Source) clientTotals(ctx context.Context) ([]insights.Metric, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	return []insights.Metric{{Name: "Total clients", Value: sprintf("%d", count)}}, nil
}

func (s *Source) statusBreakdown(ctx context.Context) ([]insights.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM clients
GROUP BY status
ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("count clients by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []insights.Metric
	for rows.Next() {
		var status sql.NullString
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		name := "unknown"
		if status.Valid && status.String != "" {
			name = status.String
		}
		out = append(out, insights.Metric{
			Name:  "Clients " + name,
			Value: sprintf("%d", count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}

func (s *Source) currencyTotals(ctx context.Context) ([]insights.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT currency, COALESCE(SUM(paid_amount), 0), COALESCE(SUM(due_amount), 0)
FROM clients
GROUP BY currency
ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("sum amounts by currency: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []insights.Metric
	for rows.Next() {
		var currency sql.NullString
		var paid, due float64
		if err := rows.Scan(&currency, &paid, &due); err != nil {
			return nil, fmt.Errorf("scan currency totals: %w", err)
		}
		code := "N/A"
		if currency.Valid && currency.String != "" {
			code = currency.String
		}
		out = append(out,
			insights.Metric{Name: "Paid (" + code + ")", Value: sprintf("%.2f %s", paid, code)},
			insights.Metric{Name: "Outstanding (" + code + ")", Value: sprintf("%.2f %s", due, code)},
		)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency totals: %w", err)
	}
	return out, nil
}

func sprintf(format string, args ...any) string {
	return message.NewPrinter(language.English).Sprintf(format, args...)
}
