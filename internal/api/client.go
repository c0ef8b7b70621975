// Package api is the typed HTTP client for the Taskdeck REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/okempf/taskdeck/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Taskdeck API. The base URL is fixed
// at construction. Every call takes a context so callers can cancel
// in-flight requests.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	hostname, _ := os.Hostname()
	return &Client{
		baseURL:  baseURL,
		clientID: fmt.Sprintf("%s@%s", uuid.New().String()[:8], hostname),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ClientID identifies this client instance on mutating requests.
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readBody(resp)
}

func (c *Client) send(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readBody(resp)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// --- Tasks ---

// ListTasks fetches tasks, optionally filtered by status and/or
// priority.
func (c *Client) ListTasks(ctx context.Context, status models.TaskStatus, priority models.Priority) ([]models.Task, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if priority != "" {
		q.Set("priority", string(priority))
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// OverdueTasks fetches undone tasks whose due date has passed.
func (c *Client) OverdueTasks(ctx context.Context) ([]models.Task, error) {
	body, err := c.get(ctx, "/api/tasks/overdue")
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/tasks/%d", id))
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a new task and returns the server's copy.
func (c *Client) CreateTask(ctx context.Context, title, description string, priority models.Priority, dueDate string) (*models.Task, error) {
	req := map[string]interface{}{
		"title":       title,
		"description": description,
	}
	if priority != "" {
		req["priority"] = priority
	}
	if dueDate != "" {
		req["due_date"] = dueDate
	}

	body, err := c.send(ctx, http.MethodPost, "/api/tasks", req)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial edit and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, id int64, upd models.TaskUpdate) (*models.Task, error) {
	body, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), upd)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus sets only the status of a task.
func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (*models.Task, error) {
	return c.UpdateTask(ctx, id, models.TaskUpdate{Status: &status})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil)
	return err
}

// --- Timers ---

// ActiveTimers fetches the authoritative set of open timers.
func (c *Client) ActiveTimers(ctx context.Context) ([]models.ActiveTimer, error) {
	body, err := c.get(ctx, "/api/timers/active")
	if err != nil {
		return nil, err
	}
	var timers []models.ActiveTimer
	if err := json.Unmarshal(body, &timers); err != nil {
		return nil, err
	}
	return timers, nil
}

// StartTimer asks the server to open a timer for the task and returns
// the new log id.
func (c *Client) StartTimer(ctx context.Context, taskID int64) (int64, error) {
	body, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/timers/start/%d", taskID), nil)
	if err != nil {
		return 0, err
	}
	var result struct {
		LogID int64 `json:"log_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	return result.LogID, nil
}

// StopTimer asks the server to close the task's open timer. The server
// resolves which timer that is; stopping with none open succeeds.
func (c *Client) StopTimer(ctx context.Context, taskID int64) error {
	_, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/timers/stop/%d", taskID), nil)
	return err
}

// --- Time logs ---

// TimeLogs fetches every recorded time log.
func (c *Client) TimeLogs(ctx context.Context) ([]models.TimeLog, error) {
	body, err := c.get(ctx, "/api/time-logs")
	if err != nil {
		return nil, err
	}
	var logs []models.TimeLog
	if err := json.Unmarshal(body, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// TimeLogsForTask fetches the time logs of one task.
func (c *Client) TimeLogsForTask(ctx context.Context, taskID int64) ([]models.TimeLog, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/time-logs/%d", taskID))
	if err != nil {
		return nil, err
	}
	var logs []models.TimeLog
	if err := json.Unmarshal(body, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// AddManualLog records a closed work interval of the given duration.
func (c *Client) AddManualLog(ctx context.Context, taskID int64, minutes int, date, notes string) (int64, error) {
	req := map[string]interface{}{
		"duration_minutes": minutes,
		"date":             date,
		"notes":            notes,
	}
	body, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/time-logs/%d", taskID), req)
	if err != nil {
		return 0, err
	}
	var result struct {
		LogID int64 `json:"log_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	return result.LogID, nil
}

// --- Analytics ---

// Dashboard fetches the aggregate analytics object.
func (c *Client) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	body, err := c.get(ctx, "/api/analytics/dashboard")
	if err != nil {
		return nil, err
	}
	var dash models.Dashboard
	if err := json.Unmarshal(body, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

// TimeBreakdown fetches the accounted-time split by "priority" or
// "status".
func (c *Client) TimeBreakdown(ctx context.Context, dimension string) (map[string]models.BreakdownSlice, error) {
	body, err := c.get(ctx, "/api/analytics/time-breakdown/"+dimension)
	if err != nil {
		return nil, err
	}
	var breakdown map[string]models.BreakdownSlice
	if err := json.Unmarshal(body, &breakdown); err != nil {
		return nil, err
	}
	return breakdown, nil
}

// --- Export and maintenance ---

// ExportCalendar downloads a calendar document for the given scope
// ("all", "undone", "overdue", or "priority/<level>"). The body is
// opaque text; the suggested filename comes from the response headers.
func (c *Client) ExportCalendar(ctx context.Context, scope string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/export/calendar/"+scope, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	filename := "tasks.ics"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			filename = params["filename"]
		}
	}
	return body, filename, nil
}

// DatabaseStats fetches per-table row counts.
func (c *Client) DatabaseStats(ctx context.Context) (map[string]int, error) {
	body, err := c.get(ctx, "/api/database/stats")
	if err != nil {
		return nil, err
	}
	var stats map[string]int
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ClearDatabase wipes the backend database. The server requires the
// explicit confirmation flag.
func (c *Client) ClearDatabase(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodPost, "/api/database/clear", map[string]bool{"confirm": true})
	return err
}

// Health reports whether the daemon is reachable and its database is
// healthy. Unlike other calls, a non-200 still returns the parsed
// payload alongside the error so callers can inspect it.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}
	return &health, nil
}

// Health matches the server's health response structure.
type Health struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}
