// Package store provides SQLite-backed persistence for Taskdeck.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okempf/taskdeck/internal/models"
	_ "modernc.org/sqlite"
)

// ErrTaskNotFound indicates the referenced task does not exist.
var ErrTaskNotFound = fmt.Errorf("task not found")

// Store provides access to the Taskdeck SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'not_started',
		due_date TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS time_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		duration_minutes INTEGER,
		notes TEXT,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
	CREATE INDEX IF NOT EXISTS idx_time_logs_task_id ON time_logs(task_id);
	CREATE INDEX IF NOT EXISTS idx_time_logs_open ON time_logs(task_id) WHERE end_time IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Operations ---

const taskColumns = `t.id, t.title, t.description, t.priority, t.status, t.due_date, t.created_at, t.updated_at,
	COALESCE((SELECT SUM(duration_minutes) FROM time_logs WHERE task_id = t.id AND duration_minutes IS NOT NULL), 0)`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullString
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status,
		&dueDate, &task.CreatedAt, &task.UpdatedAt, &task.LoggedMinutes)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		task.DueDate = dueDate.String
	}
	return task, nil
}

// CreateTask inserts a new task.
func (s *Store) CreateTask(title, description string, priority models.Priority, dueDate string) (*models.Task, error) {
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}
	now := time.Now().UTC()
	task := &models.Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      models.StatusNotStarted,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var due interface{}
	if dueDate != "" {
		due = dueDate
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, description, priority, status, due_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, task.Priority, task.Status, due, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil when no task exists.
func (s *Store) GetTask(id int64) (*models.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns all tasks, optionally filtered by status and/or
// priority.
func (s *Store) ListTasks(status models.TaskStatus, priority models.Priority) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t`
	var clauses []string
	var args []interface{}

	if status != "" {
		clauses = append(clauses, `t.status = ?`)
		args = append(args, status)
	}
	if priority != "" {
		clauses = append(clauses, `t.priority = ?`)
		args = append(args, priority)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ListOverdueTasks returns undone tasks whose due date has passed.
func (s *Store) ListOverdueTasks(now time.Time) ([]models.Task, error) {
	tasks, err := s.ListTasks("", "")
	if err != nil {
		return nil, err
	}
	var overdue []models.Task
	for _, t := range tasks {
		if t.Overdue(now) {
			overdue = append(overdue, t)
		}
	}
	return overdue, nil
}

// UpdateTask applies a partial update. Returns the updated task, or
// nil when the task does not exist.
func (s *Store) UpdateTask(id int64, upd models.TaskUpdate) (*models.Task, error) {
	if upd.Priority != nil && !models.ValidPriority(*upd.Priority) {
		return nil, fmt.Errorf("invalid priority %q", *upd.Priority)
	}
	if upd.Status != nil && !models.ValidStatus(*upd.Status) {
		return nil, fmt.Errorf("invalid status %q", *upd.Status)
	}

	var sets []string
	var args []interface{}
	if upd.Title != nil {
		sets = append(sets, `title = ?`)
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, `description = ?`)
		args = append(args, *upd.Description)
	}
	if upd.Priority != nil {
		sets = append(sets, `priority = ?`)
		args = append(args, *upd.Priority)
	}
	if upd.Status != nil {
		sets = append(sets, `status = ?`)
		args = append(args, *upd.Status)
	}
	if upd.DueDate != nil {
		sets = append(sets, `due_date = ?`)
		if *upd.DueDate == "" {
			args = append(args, nil)
		} else {
			args = append(args, *upd.DueDate)
		}
	}
	if len(sets) == 0 {
		return s.GetTask(id)
	}

	sets = append(sets, `updated_at = ?`)
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.Exec(`UPDATE tasks SET `+strings.Join(sets, `, `)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetTask(id)
}

// DeleteTask removes a task and its time logs. Returns false when the
// task does not exist.
func (s *Store) DeleteTask(id int64) (bool, error) {
	if _, err := s.db.Exec(`DELETE FROM time_logs WHERE task_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete time logs: %w", err)
	}
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
