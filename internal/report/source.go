// Package report reads aggregated andon stop and idle downtime figures for the
// notification emails.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/0xPuncker/andon-notifier/pkg/types"
	"github.com/jmoiron/sqlx"
)

const dateLayout = "2006-01-02"

var ErrNoReportData = errors.New("no andon or idle data available")

// Source provides the figures a report is built from.
type Source interface {
	LatestPeriod(ctx context.Context) (time.Time, error)
	DepartmentSummaries(ctx context.Context, period time.Time) ([]types.DepartmentSummary, error)
}

// SQLSource aggregates the andon_events and idle_events tables.
type SQLSource struct {
	db *sqlx.DB
}

func NewSQLSource(db *sqlx.DB) *SQLSource {
	return &SQLSource{db: db}
}

// LatestPeriod returns the most recent event date recorded in either table.
func (s *SQLSource) LatestPeriod(ctx context.Context) (time.Time, error) {
	var latest sql.NullString
	err := s.db.GetContext(ctx, &latest, `
		SELECT MAX(event_date) FROM (
			SELECT event_date FROM andon_events
			UNION ALL
			SELECT event_date FROM idle_events
		) AS events`)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest period: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, ErrNoReportData
	}

	value := latest.String
	if len(value) > len(dateLayout) {
		value = value[:len(dateLayout)]
	}
	period, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse period %q: %w", latest.String, err)
	}
	return period, nil
}

type departmentTotal struct {
	Department string  `db:"department"`
	Count      int     `db:"event_count"`
	Minutes    float64 `db:"total_minutes"`
}

// DepartmentSummaries returns one summary per department active in the period,
// ordered by department name.
func (s *SQLSource) DepartmentSummaries(ctx context.Context, period time.Time) ([]types.DepartmentSummary, error) {
	day := period.Format(dateLayout)

	var stops []departmentTotal
	if err := s.db.SelectContext(ctx, &stops, s.db.Rebind(`
		SELECT department, COUNT(*) AS event_count, COALESCE(SUM(stop_minutes), 0) AS total_minutes
		FROM andon_events
		WHERE event_date = ?
		GROUP BY department`), day); err != nil {
		return nil, fmt.Errorf("failed to aggregate andon events for %s: %w", day, err)
	}

	var idles []departmentTotal
	if err := s.db.SelectContext(ctx, &idles, s.db.Rebind(`
		SELECT department, COUNT(*) AS event_count, COALESCE(SUM(idle_minutes), 0) AS total_minutes
		FROM idle_events
		WHERE event_date = ?
		GROUP BY department`), day); err != nil {
		return nil, fmt.Errorf("failed to aggregate idle events for %s: %w", day, err)
	}

	byDepartment := make(map[string]*types.DepartmentSummary)
	get := func(name string) *types.DepartmentSummary {
		if d, ok := byDepartment[name]; ok {
			return d
		}
		d := &types.DepartmentSummary{Department: name}
		byDepartment[name] = d
		return d
	}

	for _, row := range stops {
		d := get(row.Department)
		d.StopCount = row.Count
		d.StopMinutes = row.Minutes
	}
	for _, row := range idles {
		d := get(row.Department)
		d.IdleCount = row.Count
		d.IdleMinutes = row.Minutes
	}

	summaries := make([]types.DepartmentSummary, 0, len(byDepartment))
	for _, d := range byDepartment {
		summaries = append(summaries, *d)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Department < summaries[j].Department
	})
	return summaries, nil
}
