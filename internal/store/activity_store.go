package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
)

// DefaultActivityLimit caps listings that do not ask for a limit.
const DefaultActivityLimit = 100

// Append stores rec and returns its ID. The record's timestamp is written as
// given; callers stamp it with the server clock.
func (s *PostgresStore) Append(ctx context.Context, rec domain.EventRecord) (domain.EventID, error) {
	var id domain.EventID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, action, details, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.SourceUserID, string(rec.Kind), rec.Detail, rec.OccurredAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting activity: %w", err)
	}
	return id, nil
}

// ListActivities returns activity matching filter, newest first.
func (s *PostgresStore) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.EventRecord, error) {
	query := `SELECT id, user_id, action, details, occurred_at FROM activity_logs`
	var conditions []string
	args := []any{}
	argIdx := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", argIdx))
		args = append(args, kinds)
		argIdx++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, filter.From)
		argIdx++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", argIdx))
		args = append(args, filter.To)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY occurred_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	records := []domain.EventRecord{}
	for rows.Next() {
		var (
			rec  domain.EventRecord
			kind string
		)
		if err := rows.Scan(&rec.ID, &rec.SourceUserID, &kind, &rec.Detail, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		rec.Kind = domain.EventKind(kind)
		rec.OccurredAt = rec.OccurredAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	return records, nil
}

// Summary aggregates the activity of the trailing days up to now, broken
// down by action and by UTC calendar day.
func (s *PostgresStore) Summary(ctx context.Context, days int, now time.Time) (*domain.ActivitySummary, error) {
	end := now.UTC()
	start := end.AddDate(0, 0, -days)

	rows, err := s.pool.Query(ctx, `
		SELECT action, to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM activity_logs
		WHERE occurred_at >= $1 AND occurred_at <= $2
		GROUP BY action, day
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying activity summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.ActivitySummary{
		PeriodDays:      days,
		ActionBreakdown: make(map[string]int),
		DailyBreakdown:  make(map[string]int),
	}
	for rows.Next() {
		var (
			action, day string
			count       int
		)
		if err := rows.Scan(&action, &day, &count); err != nil {
			return nil, fmt.Errorf("scanning activity summary: %w", err)
		}
		summary.TotalActivities += count
		summary.ActionBreakdown[action] += count
		summary.DailyBreakdown[day] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity summary: %w", err)
	}

	return summary, nil
}
