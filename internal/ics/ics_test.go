package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/okempf/taskdeck/internal/models"
)

var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func sampleTasks() []models.Task {
	created := testNow.Add(-48 * time.Hour)
	return []models.Task{
		{ID: 1, Title: "Overdue task", Priority: models.PriorityHigh, Status: models.StatusInProgress,
			DueDate: "2026-08-01", CreatedAt: created, UpdatedAt: created},
		{ID: 2, Title: "Done task", Priority: models.PriorityLow, Status: models.StatusDone,
			DueDate: "2026-08-01", CreatedAt: created, UpdatedAt: created},
		{ID: 3, Title: "Open task", Priority: models.PriorityMedium, Status: models.StatusNotStarted,
			CreatedAt: created, UpdatedAt: created},
	}
}

func TestFilterScopes(t *testing.T) {
	tasks := sampleTasks()

	if got := Filter(tasks, models.ExportAll, testNow); len(got) != 3 {
		t.Errorf("all: %d tasks, want 3", len(got))
	}

	undone := Filter(tasks, models.ExportUndone, testNow)
	if len(undone) != 2 {
		t.Fatalf("undone: %d tasks, want 2", len(undone))
	}
	for _, task := range undone {
		if task.Status == models.StatusDone {
			t.Errorf("done task %d leaked into undone scope", task.ID)
		}
	}

	overdue := Filter(tasks, models.ExportOverdue, testNow)
	if len(overdue) != 1 || overdue[0].ID != 1 {
		t.Errorf("overdue = %+v, want only task 1", overdue)
	}
}

func TestFilterPriority(t *testing.T) {
	got := FilterPriority(sampleTasks(), models.PriorityHigh)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("high = %+v, want only task 1", got)
	}
}

func TestRenderStructure(t *testing.T) {
	body := string(Render(sampleTasks(), testNow))

	if !strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n") {
		t.Error("missing VCALENDAR open")
	}
	if !strings.HasSuffix(body, "END:VCALENDAR\r\n") {
		t.Error("missing VCALENDAR close")
	}
	for _, want := range []string{
		"VERSION:2.0",
		"PRODID:-//Taskdeck//Task Management//EN",
		"UID:task-1@taskdeck",
		"UID:task-3@taskdeck",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if n := strings.Count(body, "BEGIN:VEVENT"); n != 3 {
		t.Errorf("%d events, want 3", n)
	}
	// Every content line ends with CRLF
	for _, line := range strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n") {
		if strings.HasSuffix(line, "\r") {
			t.Fatalf("bare CR in line %q", line)
		}
	}
}

func TestRenderDueDateBecomesAllDay(t *testing.T) {
	body := string(Render(sampleTasks()[:1], testNow))

	if !strings.Contains(body, "DTSTART;VALUE=DATE:20260801") {
		t.Error("missing all-day DTSTART on due date")
	}
	if !strings.Contains(body, "DTEND;VALUE=DATE:20260802") {
		t.Error("missing exclusive DTEND the day after")
	}
}

func TestRenderUndatedFallsBackToCreation(t *testing.T) {
	tasks := sampleTasks()
	body := string(Render(tasks[2:3], testNow))

	if strings.Contains(body, "VALUE=DATE") {
		t.Error("undated task rendered as all-day event")
	}
	if !strings.Contains(body, "DTSTART:"+tasks[2].CreatedAt.UTC().Format("20060102T150405Z")) {
		t.Error("missing creation-time DTSTART")
	}
}

func TestRenderStatusAndAlarm(t *testing.T) {
	tasks := sampleTasks()

	open := string(Render(tasks[:1], testNow))
	if !strings.Contains(open, "STATUS:TENTATIVE") {
		t.Error("open task not tentative")
	}
	if !strings.Contains(open, "BEGIN:VALARM") || !strings.Contains(open, "TRIGGER:-PT9H") {
		t.Error("open due task missing reminder alarm")
	}

	done := string(Render(tasks[1:2], testNow))
	if !strings.Contains(done, "STATUS:CONFIRMED") {
		t.Error("done task not confirmed")
	}
	if strings.Contains(done, "BEGIN:VALARM") {
		t.Error("done task carries an alarm")
	}
}

func TestEscape(t *testing.T) {
	task := models.Task{
		ID:        9,
		Title:     "Plan; prep, review\nnotes",
		Priority:  models.PriorityMedium,
		Status:    models.StatusNotStarted,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}

	body := string(Render([]models.Task{task}, testNow))
	if !strings.Contains(body, `SUMMARY:Plan\; prep\, review\nnotes`) {
		t.Errorf("escaping failed:\n%s", body)
	}
}
