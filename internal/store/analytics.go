package store

import (
	"fmt"
	"math"
	"time"

	"github.com/okempf/taskdeck/internal/models"
)

// formatMinutes renders accumulated minutes as "{h}h {m}m".
func formatMinutes(m int) string {
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// TotalLoggedMinutes returns the sum of all accounted time.
func (s *Store) TotalLoggedMinutes() (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM time_logs WHERE duration_minutes IS NOT NULL`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query total time: %w", err)
	}
	return total, nil
}

// timeByDimension sums accounted minutes grouped by a task column.
// The column name is one of the two fixed literals below, never user
// input.
func (s *Store) timeByDimension(column string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT t.` + column + `, COALESCE(SUM(tl.duration_minutes), 0)
		FROM tasks t
		LEFT JOIN time_logs tl ON t.id = tl.task_id AND tl.duration_minutes IS NOT NULL
		GROUP BY t.` + column)
	if err != nil {
		return nil, fmt.Errorf("query time by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var key string
		var minutes int
		if err := rows.Scan(&key, &minutes); err != nil {
			return nil, fmt.Errorf("scan time by %s: %w", column, err)
		}
		result[key] = minutes
	}
	return result, rows.Err()
}

// TimeBreakdownByPriority returns the accounted-time split across
// priorities. Every priority appears, zero or not.
func (s *Store) TimeBreakdownByPriority() (map[models.Priority]models.BreakdownSlice, error) {
	byPriority, err := s.timeByDimension("priority")
	if err != nil {
		return nil, err
	}
	total, err := s.TotalLoggedMinutes()
	if err != nil {
		return nil, err
	}

	breakdown := make(map[models.Priority]models.BreakdownSlice, len(models.Priorities))
	for _, p := range models.Priorities {
		breakdown[p] = breakdownSlice(byPriority[string(p)], total)
	}
	return breakdown, nil
}

// TimeBreakdownByStatus returns the accounted-time split across task
// statuses. Every status appears, zero or not.
func (s *Store) TimeBreakdownByStatus() (map[models.TaskStatus]models.BreakdownSlice, error) {
	byStatus, err := s.timeByDimension("status")
	if err != nil {
		return nil, err
	}
	total, err := s.TotalLoggedMinutes()
	if err != nil {
		return nil, err
	}

	breakdown := make(map[models.TaskStatus]models.BreakdownSlice, len(models.Statuses))
	for _, st := range models.Statuses {
		breakdown[st] = breakdownSlice(byStatus[string(st)], total)
	}
	return breakdown, nil
}

func breakdownSlice(minutes, total int) models.BreakdownSlice {
	var pct float64
	if total > 0 {
		pct = round1(float64(minutes) / float64(total) * 100)
	}
	return models.BreakdownSlice{
		Minutes:    minutes,
		Hours:      float64(minutes) / 60,
		Percentage: pct,
		Formatted:  formatMinutes(minutes),
	}
}

// Dashboard aggregates the analytics the dashboard page displays.
// Date-window counters are computed in Go rather than SQL so they do
// not depend on the driver's datetime text format.
func (s *Store) Dashboard(now time.Time) (*models.Dashboard, error) {
	tasks, err := s.ListTasks("", "")
	if err != nil {
		return nil, err
	}
	totalLogged, err := s.TotalLoggedMinutes()
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		TotalTasks:           len(tasks),
		StatusCounts:         make(map[models.TaskStatus]int, len(models.Statuses)),
		PriorityCounts:       make(map[models.Priority]int, len(models.Priorities)),
		TotalLoggedMinutes:   totalLogged,
		TotalLoggedFormatted: formatMinutes(totalLogged),
	}
	for _, st := range models.Statuses {
		d.StatusCounts[st] = 0
	}
	for _, p := range models.Priorities {
		d.PriorityCounts[p] = 0
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := today.AddDate(0, 0, -7)

	done := 0
	for _, t := range tasks {
		d.StatusCounts[t.Status]++
		d.PriorityCounts[t.Priority]++

		if t.Overdue(now) {
			d.OverdueCount++
		}
		if !t.CreatedAt.Before(today) {
			d.CreatedToday++
		}
		if t.Status == models.StatusDone {
			done++
			// updated_at approximates the completion time
			if !t.UpdatedAt.Before(today) {
				d.CompletedToday++
			}
			if !t.UpdatedAt.Before(weekAgo) {
				d.CompletedThisWeek++
			}
		}
	}
	d.BlockedCount = d.StatusCounts[models.StatusBlocked]
	if len(tasks) > 0 {
		d.CompletionRate = round1(float64(done) / float64(len(tasks)) * 100)
	}
	return d, nil
}

// DatabaseStats returns the row count of every table.
func (s *Store) DatabaseStats() (map[string]int, error) {
	stats := make(map[string]int, 2)
	for _, table := range []string{"tasks", "time_logs"} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// Clear removes every row from every table.
func (s *Store) Clear() error {
	for _, table := range []string{"time_logs", "tasks"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
