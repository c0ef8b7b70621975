package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/okempf/taskdeck/internal/models"
)

// openLogID returns the id of the task's open time log, or 0.
func (s *Store) openLogID(taskID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM time_logs WHERE task_id = ? AND end_time IS NULL ORDER BY start_time DESC LIMIT 1`,
		taskID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query open log: %w", err)
	}
	return id, nil
}

// StartTimer opens a time log for the task. A task has at most one
// open log; starting an already-running timer returns the existing
// log id.
func (s *Store) StartTimer(taskID int64) (int64, error) {
	task, err := s.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	if task == nil {
		return 0, ErrTaskNotFound
	}

	existing, err := s.openLogID(taskID)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return existing, nil
	}

	res, err := s.db.Exec(
		`INSERT INTO time_logs (task_id, start_time) VALUES (?, ?)`,
		taskID, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert time log: %w", err)
	}
	return res.LastInsertId()
}

// StopTimer closes the task's open time log and accounts its duration
// in whole minutes. Returns false when no timer was open; that is not
// an error.
func (s *Store) StopTimer(taskID int64, notes string) (bool, error) {
	logID, err := s.openLogID(taskID)
	if err != nil {
		return false, err
	}
	if logID == 0 {
		return false, nil
	}

	var start time.Time
	if err := s.db.QueryRow(`SELECT start_time FROM time_logs WHERE id = ?`, logID).Scan(&start); err != nil {
		return false, fmt.Errorf("query log start: %w", err)
	}

	end := time.Now().UTC()
	minutes := int(end.Sub(start).Minutes())
	var n interface{}
	if notes != "" {
		n = notes
	}
	_, err = s.db.Exec(
		`UPDATE time_logs SET end_time = ?, duration_minutes = ?, notes = COALESCE(?, notes) WHERE id = ?`,
		end, minutes, n, logID,
	)
	if err != nil {
		return false, fmt.Errorf("close time log: %w", err)
	}
	return true, nil
}

// ActiveTimers returns every open time log joined with its task.
func (s *Store) ActiveTimers() ([]models.ActiveTimer, error) {
	rows, err := s.db.Query(`
		SELECT tl.id, tl.task_id, t.title, t.priority, tl.start_time
		FROM time_logs tl
		JOIN tasks t ON tl.task_id = t.id
		WHERE tl.end_time IS NULL
		ORDER BY tl.start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("query active timers: %w", err)
	}
	defer rows.Close()

	var timers []models.ActiveTimer
	for rows.Next() {
		var tm models.ActiveTimer
		if err := rows.Scan(&tm.ID, &tm.TaskID, &tm.TaskTitle, &tm.Priority, &tm.StartTime); err != nil {
			return nil, fmt.Errorf("scan active timer: %w", err)
		}
		timers = append(timers, tm)
	}
	return timers, rows.Err()
}

// TimeLogs returns every time log joined with its task title, newest
// first. When taskID is non-zero only that task's logs are returned.
func (s *Store) TimeLogs(taskID int64) ([]models.TimeLog, error) {
	query := `
		SELECT tl.id, tl.task_id, t.title, tl.start_time, tl.end_time, tl.duration_minutes, tl.notes
		FROM time_logs tl
		JOIN tasks t ON tl.task_id = t.id`
	var args []interface{}
	if taskID != 0 {
		query += ` WHERE tl.task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY tl.start_time DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time logs: %w", err)
	}
	defer rows.Close()

	var logs []models.TimeLog
	for rows.Next() {
		var l models.TimeLog
		var end sql.NullTime
		var minutes sql.NullInt64
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.TaskID, &l.TaskTitle, &l.StartTime, &end, &minutes, &notes); err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		if end.Valid {
			t := end.Time
			l.EndTime = &t
		}
		if minutes.Valid {
			l.DurationMinutes = int(minutes.Int64)
		}
		if notes.Valid {
			l.Notes = notes.String
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// AddManualLog records a closed time log of the given duration. When
// date is empty the log is stamped now.
func (s *Store) AddManualLog(taskID int64, minutes int, date, notes string) (int64, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	task, err := s.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	if task == nil {
		return 0, ErrTaskNotFound
	}

	start := time.Now().UTC()
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return 0, fmt.Errorf("invalid date %q: %w", date, err)
		}
		start = d
	}
	end := start.Add(time.Duration(minutes) * time.Minute)

	var n interface{}
	if notes != "" {
		n = notes
	}
	res, err := s.db.Exec(
		`INSERT INTO time_logs (task_id, start_time, end_time, duration_minutes, notes) VALUES (?, ?, ?, ?, ?)`,
		taskID, start, end, minutes, n,
	)
	if err != nil {
		return 0, fmt.Errorf("insert manual log: %w", err)
	}
	return res.LastInsertId()
}
