// Package ics renders tasks as iCalendar (RFC 5545) documents for the
// calendar export endpoints. The output imports into Google Calendar,
// Outlook and Apple Calendar.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/okempf/taskdeck/internal/models"
)

const (
	prodID   = "-//Taskdeck//Task Management//EN"
	uidHost  = "taskdeck"
	calName  = "Taskdeck Tasks"
	dateOnly = "20060102"
	dateTime = "20060102T150405Z"
)

// Filter returns the subset of tasks covered by the export scope.
func Filter(tasks []models.Task, scope models.ExportScope, now time.Time) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		switch scope {
		case models.ExportAll:
			out = append(out, t)
		case models.ExportUndone:
			if t.Status != models.StatusDone {
				out = append(out, t)
			}
		case models.ExportOverdue:
			if t.Overdue(now) {
				out = append(out, t)
			}
		}
	}
	return out
}

// FilterPriority returns the tasks with the given priority.
func FilterPriority(tasks []models.Task, p models.Priority) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Priority == p {
			out = append(out, t)
		}
	}
	return out
}

// Render produces a complete VCALENDAR document for the given tasks.
func Render(tasks []models.Task, now time.Time) []byte {
	var b strings.Builder
	line(&b, "BEGIN:VCALENDAR")
	line(&b, "PRODID:"+prodID)
	line(&b, "VERSION:2.0")
	line(&b, "CALSCALE:GREGORIAN")
	line(&b, "METHOD:PUBLISH")
	line(&b, "X-WR-CALNAME:"+escape(calName))
	line(&b, "X-WR-TIMEZONE:UTC")

	for _, t := range tasks {
		writeEvent(&b, t, now)
	}

	line(&b, "END:VCALENDAR")
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, t models.Task, now time.Time) {
	line(b, "BEGIN:VEVENT")
	line(b, fmt.Sprintf("UID:task-%d@%s", t.ID, uidHost))
	line(b, "DTSTAMP:"+now.UTC().Format(dateTime))
	line(b, "SUMMARY:"+escape(t.Title))

	desc := t.Description
	desc += fmt.Sprintf("\nPriority: %s\nStatus: %s", t.Priority, t.Status)
	line(b, "DESCRIPTION:"+escape(strings.TrimSpace(desc)))

	line(b, "CATEGORIES:"+escape(strings.ToUpper(string(t.Priority))+" PRIORITY"))
	line(b, "CREATED:"+t.CreatedAt.UTC().Format(dateTime))
	line(b, "LAST-MODIFIED:"+t.UpdatedAt.UTC().Format(dateTime))

	// Due tasks become all-day events on the due date; undated tasks
	// fall back to their creation time.
	if t.DueDate != "" {
		if due, err := time.Parse("2006-01-02", t.DueDate); err == nil {
			line(b, "DTSTART;VALUE=DATE:"+due.Format(dateOnly))
			line(b, "DTEND;VALUE=DATE:"+due.AddDate(0, 0, 1).Format(dateOnly))
		}
	} else {
		line(b, "DTSTART:"+t.CreatedAt.UTC().Format(dateTime))
	}

	if t.Status == models.StatusDone {
		line(b, "STATUS:CONFIRMED")
	} else {
		line(b, "STATUS:TENTATIVE")
		if t.DueDate != "" {
			// Morning-of reminder for anything still open
			line(b, "BEGIN:VALARM")
			line(b, "ACTION:DISPLAY")
			line(b, "DESCRIPTION:"+escape("Due: "+t.Title))
			line(b, "TRIGGER:-PT9H")
			line(b, "END:VALARM")
		}
	}

	line(b, "END:VEVENT")
}

// line writes a content line with the CRLF terminator the format
// requires.
func line(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\r\n")
}

// escape applies RFC 5545 TEXT escaping.
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}
