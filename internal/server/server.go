// Package server exposes the Taskdeck REST API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okempf/taskdeck/internal/models"
	"github.com/okempf/taskdeck/internal/store"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// Server provides the HTTP API for Taskdeck.
type Server struct {
	store  *store.Store
	addr   string
	server *http.Server
}

// NewServer creates a new HTTP server backed by the given store.
func NewServer(st *store.Store, addr string) *Server {
	return &Server{
		store: st,
		addr:  addr,
	}
}

// Handler builds the route table. Exposed so tests can drive the full
// mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/", s.handleTaskByID)

	mux.HandleFunc("/api/timers/active", s.handleActiveTimers)
	mux.HandleFunc("/api/timers/start/", s.handleStartTimer)
	mux.HandleFunc("/api/timers/stop/", s.handleStopTimer)

	mux.HandleFunc("/api/time-logs", s.handleTimeLogs)
	mux.HandleFunc("/api/time-logs/", s.handleTimeLogsByTask)

	mux.HandleFunc("/api/analytics/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/analytics/time-breakdown/", s.handleTimeBreakdown)

	mux.HandleFunc("/api/export/calendar/", s.handleExportCalendar)

	mux.HandleFunc("/api/database/stats", s.handleDatabaseStats)
	mux.HandleFunc("/api/database/clear", s.handleDatabaseClear)

	mux.HandleFunc("/api/health", s.handleHealth)

	return logRequests(mux)
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Taskdeck daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// logRequests tags each request with a short correlation id.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()[:8]
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s %s", reqID, r.Method, r.URL.Path)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pathID parses the numeric id that follows the given route prefix.
func pathID(r *http.Request, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.TrimSuffix(rest, "/")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- Health ---

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		health.OK = false
		health.DB = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	writeJSON(w, http.StatusOK, health)
}

// --- Task handlers ---

type createTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	DueDate     string          `json:"due_date"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.DueDate != "" {
		if _, err := time.Parse("2006-01-02", req.DueDate); err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
	}

	task, err := s.store.CreateTask(req.Title, req.Description, req.Priority, req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(r.URL.Query().Get("status"))
	priority := models.Priority(r.URL.Query().Get("priority"))
	if status != "" && !models.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if priority != "" && !models.ValidPriority(priority) {
		writeError(w, http.StatusBadRequest, "unknown priority filter")
		return
	}

	tasks, err := s.store.ListTasks(status, priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")

	// Overdue listing shares the /api/tasks/ prefix
	if rest == "overdue" && r.Method == http.MethodGet {
		tasks, err := s.store.ListOverdueTasks(time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
		return
	}

	id, ok := pathID(r, "/api/tasks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getTask(w, r, id)
	case http.MethodPut:
		s.updateTask(w, r, id)
	case http.MethodDelete:
		s.deleteTask(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, id int64) {
	task, err := s.store.GetTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, id int64) {
	var upd models.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.store.UpdateTask(id, upd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, id int64) {
	ok, err := s.store.DeleteTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

// --- Timer handlers ---

func (s *Server) handleActiveTimers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	timers, err := s.store.ActiveTimers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if timers == nil {
		timers = []models.ActiveTimer{}
	}
	writeJSON(w, http.StatusOK, timers)
}

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := pathID(r, "/api/timers/start/")
	if !ok {
		writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	logID, err := s.store.StartTimer(id)
	if err == store.ErrTaskNotFound {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"log_id":  logID,
		"message": "Timer started",
	})
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := pathID(r, "/api/timers/stop/")
	if !ok {
		writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	// Stopping with no open timer is a safe no-op; clients issue the
	// stop unconditionally before marking a task done.
	stopped, err := s.store.StopTimer(id, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msg := "Timer stopped"
	if !stopped {
		msg = "No active timer found"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// --- Time log handlers ---

func (s *Server) handleTimeLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	logs, err := s.store.TimeLogs(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []models.TimeLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

type manualLogRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	Date            string `json:"date"`
	Notes           string `json:"notes"`
}

func (s *Server) handleTimeLogsByTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/time-logs/")
	if !ok {
		writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		logs, err := s.store.TimeLogs(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if logs == nil {
			logs = []models.TimeLog{}
		}
		writeJSON(w, http.StatusOK, logs)

	case http.MethodPost:
		var req manualLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		logID, err := s.store.AddManualLog(id, req.DurationMinutes, req.Date, req.Notes)
		if err == store.ErrTaskNotFound {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"log_id":  logID,
			"message": "Time log added",
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Analytics handlers ---

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dash, err := s.store.Dashboard(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleTimeBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dim := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/analytics/time-breakdown/"), "/")

	switch dim {
	case "priority":
		breakdown, err := s.store.TimeBreakdownByPriority()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	case "status":
		breakdown, err := s.store.TimeBreakdownByStatus()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	default:
		writeError(w, http.StatusNotFound, "unknown breakdown dimension")
	}
}
