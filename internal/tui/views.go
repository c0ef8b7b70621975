package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/okempf/taskdeck/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusNotStarted = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red

	prioHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	prioMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	prioLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6"))
)

func renderStatus(status models.TaskStatus) string {
	switch status {
	case models.StatusNotStarted:
		return statusNotStarted.Render("○ not started")
	case models.StatusInProgress:
		return statusInProgress.Render("▶ in progress")
	case models.StatusDone:
		return statusDone.Render("✓ done")
	case models.StatusBlocked:
		return statusBlocked.Render("✗ blocked")
	default:
		return string(status)
	}
}

func renderPriority(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return prioHigh.Render("high")
	case models.PriorityMedium:
		return prioMedium.Render("medium")
	case models.PriorityLow:
		return prioLow.Render("low")
	default:
		return string(p)
	}
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")

	switch a.page {
	case "timers":
		b.WriteString(a.renderTimers())
	case "analytics":
		b.WriteString(a.renderAnalytics())
	case "detail":
		b.WriteString(a.renderDetail())
	default:
		b.WriteString(a.renderTasks())
	}

	b.WriteString("\n")
	if a.message != "" {
		if strings.HasPrefix(a.message, "Error") {
			b.WriteString(errorStyle.Render(a.message))
		} else {
			b.WriteString(messageStyle.Render(a.message))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("ctrl+t tasks • ctrl+w timers • ctrl+d analytics • tab filter • enter detail/run • esc back • ctrl+c quit"))

	return b.String()
}

func (a *App) renderHeader() string {
	daemon := offlineStyle.Render("● offline")
	if a.daemonOnline {
		daemon = onlineStyle.Render("● online")
	}

	running := ""
	if n := len(a.timers); n == 1 {
		running = timerStyle.Render(" ⏱ 1 timer running")
	} else if n > 1 {
		running = timerStyle.Render(fmt.Sprintf(" ⏱ %d timers running", n))
	}

	return titleStyle.Render("Taskdeck") + "  " + daemon + running
}

func (a *App) renderTasks() string {
	var b strings.Builder

	label := filterNames[a.filterIdx]
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks [%s]", label)))
	b.WriteString("\n\n")

	if a.loading {
		b.WriteString(dimStyle.Render("  Loading..."))
		return b.String()
	}
	if len(a.tasks) == 0 {
		b.WriteString(dimStyle.Render("  No tasks. Type: add <title>"))
		return b.String()
	}

	for i, task := range a.tasks {
		cursor := "  "
		title := task.Title
		if i == a.selectedIdx {
			cursor = "> "
			title = selectedStyle.Render(title)
		}

		due := ""
		if task.DueDate != "" {
			due = dimStyle.Render(" due " + task.DueDate)
		}
		logged := ""
		if task.LoggedMinutes > 0 {
			logged = dimStyle.Render(fmt.Sprintf(" %dh %dm", task.LoggedMinutes/60, task.LoggedMinutes%60))
		}
		timer := ""
		for _, t := range a.timers {
			if t.TaskID == task.ID {
				timer = timerStyle.Render(" ⏱ " + t.Elapsed)
				break
			}
		}

		b.WriteString(fmt.Sprintf("%s#%-4d %s  %s %s%s%s%s\n",
			cursor, task.ID, title, renderStatus(task.Status), renderPriority(task.Priority), due, logged, timer))
	}

	return b.String()
}

func (a *App) renderTimers() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Active Timers"))
	b.WriteString("\n\n")

	if len(a.timers) == 0 {
		b.WriteString(dimStyle.Render("  No timers running. Select a task and type: start"))
		return b.String()
	}

	for _, t := range a.timers {
		b.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			timerStyle.Render(t.Elapsed),
			t.TaskTitle,
			renderPriority(t.Priority),
			dimStyle.Render("since "+t.StartTime.Local().Format("15:04:05"))))
	}

	return b.String()
}

func (a *App) renderAnalytics() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Analytics"))
	b.WriteString("\n\n")

	if a.dashboard == nil {
		b.WriteString(dimStyle.Render("  Loading..."))
		return b.String()
	}

	d := a.dashboard
	b.WriteString(fmt.Sprintf("  Tasks: %d total, %.1f%% complete\n", d.TotalTasks, d.CompletionRate))
	b.WriteString(fmt.Sprintf("  Today: %d completed, %d created • This week: %d completed\n",
		d.CompletedToday, d.CreatedToday, d.CompletedThisWeek))
	b.WriteString(fmt.Sprintf("  Overdue: %d • Blocked: %d • Logged: %s\n",
		d.OverdueCount, d.BlockedCount, d.TotalLoggedFormatted))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("  By status"))
	b.WriteString("\n")
	for _, status := range models.Statuses {
		b.WriteString(fmt.Sprintf("    %-14s %d\n", renderStatus(status), d.StatusCounts[status]))
	}
	b.WriteString("\n")

	if len(a.breakdown) > 0 {
		b.WriteString(headerStyle.Render("  Time by priority"))
		b.WriteString("\n")
		for _, p := range models.Priorities {
			if slice, ok := a.breakdown[string(p)]; ok {
				b.WriteString(fmt.Sprintf("    %-8s %-10s %5.1f%%\n",
					renderPriority(p), slice.Formatted, slice.Percentage))
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  ctrl+r to refresh"))
	return b.String()
}

func (a *App) renderDetail() string {
	var b strings.Builder

	if a.detailTask == nil {
		b.WriteString(dimStyle.Render("  Loading..."))
		return b.String()
	}

	t := a.detailTask
	b.WriteString(headerStyle.Render(fmt.Sprintf("Task #%d", t.ID)))
	b.WriteString("\n\n")
	b.WriteString("  " + titleStyle.Render(t.Title) + "\n")
	if t.Description != "" {
		b.WriteString("  " + t.Description + "\n")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Status:   %s\n", renderStatus(t.Status)))
	b.WriteString(fmt.Sprintf("  Priority: %s\n", renderPriority(t.Priority)))
	if t.DueDate != "" {
		b.WriteString(fmt.Sprintf("  Due:      %s\n", t.DueDate))
	}
	b.WriteString(fmt.Sprintf("  Logged:   %dh %dm\n", t.LoggedMinutes/60, t.LoggedMinutes%60))
	b.WriteString(fmt.Sprintf("  Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04")))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("  Time log"))
	b.WriteString("\n")
	if len(a.detailLogs) == 0 {
		b.WriteString(dimStyle.Render("    No entries"))
		b.WriteString("\n")
	}
	for _, entry := range a.detailLogs {
		notes := ""
		if entry.Notes != "" {
			notes = "  " + dimStyle.Render(entry.Notes)
		}
		b.WriteString(fmt.Sprintf("    %s  %3dm%s\n",
			entry.StartTime.Local().Format("2006-01-02 15:04"), entry.DurationMinutes, notes))
	}

	return b.String()
}
