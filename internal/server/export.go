package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okempf/taskdeck/internal/ics"
	"github.com/okempf/taskdeck/internal/models"
)

// handleExportCalendar serves /api/export/calendar/{scope} where scope
// is all, undone, overdue, or priority/{level}. The response is a
// downloadable iCalendar document.
func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	scope := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/export/calendar/"), "/")
	now := time.Now()

	tasks, err := s.store.ListTasks("", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var selected []models.Task
	var name string
	switch {
	case scope == "all" || scope == "undone" || scope == "overdue":
		selected = ics.Filter(tasks, models.ExportScope(scope), now)
		name = scope
	case strings.HasPrefix(scope, "priority/"):
		p := models.Priority(strings.TrimPrefix(scope, "priority/"))
		if !models.ValidPriority(p) {
			writeError(w, http.StatusBadRequest, "unknown priority")
			return
		}
		selected = ics.FilterPriority(tasks, p)
		name = string(p)
	default:
		writeError(w, http.StatusNotFound, "unknown export scope")
		return
	}

	filename := fmt.Sprintf("%s_tasks_%s.ics", name, now.Format("20060102"))
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(ics.Render(selected, now))
}

// --- Database maintenance handlers ---

func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.store.DatabaseStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDatabaseClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil || !req.Confirm {
		writeError(w, http.StatusBadRequest, "confirmation required")
		return
	}

	if err := s.store.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Database cleared"})
}
