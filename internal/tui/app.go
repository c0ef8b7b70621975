// Package tui provides the interactive terminal dashboard for
// Taskdeck.
package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/okempf/taskdeck/internal/api"
	"github.com/okempf/taskdeck/internal/models"
	"github.com/okempf/taskdeck/internal/syncer"
)

// App is the main TUI application model. All backend state arrives
// through messages; the synchronizer owns the task/timer caches.
type App struct {
	client *api.Client
	sync   *syncer.Synchronizer
	ticker *syncer.Ticker

	page        string // "tasks", "timers", "analytics", "detail"
	tasks       []models.Task
	timers      []syncer.TimerView
	selectedIdx int
	filter      models.TaskStatus
	filterIdx   int

	detailTask *models.Task
	detailLogs []models.TimeLog

	dashboard *models.Dashboard
	breakdown map[string]models.BreakdownSlice

	input        textinput.Model
	message      string
	loading      bool
	daemonOnline bool
	width        int
	height       int
}

var filters = []models.TaskStatus{"", models.StatusNotStarted, models.StatusInProgress, models.StatusDone, models.StatusBlocked}
var filterNames = []string{"ALL", "NOT STARTED", "IN PROGRESS", "DONE", "BLOCKED"}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <title> | start | stop | done | prio <p> | due <date> | log <min> | export <scope>"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	client := api.NewClient(apiAddr)
	s := syncer.New(client)

	return &App{
		client: client,
		sync:   s,
		ticker: syncer.NewTicker(s, syncer.DefaultTickInterval),
		page:   "tasks",
		input:  ti,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.ticker.Start()
	defer a.ticker.Stop()

	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTasks(),
		a.checkDaemon(),
		a.waitForSnapshot(),
	)
}

// --- Messages ---

type snapshotMsg syncer.Snapshot

type tasksLoadedMsg struct {
	tasks []models.Task
}

type taskDetailMsg struct {
	task *models.Task
	logs []models.TimeLog
}

type analyticsMsg struct {
	dashboard *models.Dashboard
	breakdown map[string]models.BreakdownSlice
}

type daemonStatusMsg struct {
	online bool
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.page != "tasks" {
				a.page = "tasks"
				a.detailTask = nil
				return a, a.fetchTasks()
			}

		case "up", "ctrl+k":
			if a.page == "tasks" && a.selectedIdx > 0 {
				a.selectedIdx--
			}

		case "down", "ctrl+j":
			if a.page == "tasks" && a.selectedIdx < len(a.tasks)-1 {
				a.selectedIdx++
			}

		case "tab":
			if a.page == "tasks" {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				a.filter = filters[a.filterIdx]
				return a, a.fetchTasks()
			}

		case "ctrl+t":
			a.page = "tasks"
			return a, a.fetchTasks()

		case "ctrl+w":
			a.page = "timers"

		case "ctrl+d":
			a.page = "analytics"
			return a, a.fetchAnalytics()

		case "ctrl+r":
			switch a.page {
			case "analytics":
				return a, a.fetchAnalytics()
			case "detail":
				if a.detailTask != nil {
					return a, a.fetchTaskDetail(a.detailTask.ID)
				}
			default:
				return a, a.fetchTasks()
			}

		case "enter":
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			}
			if a.page == "tasks" && len(a.tasks) > 0 {
				task := a.tasks[a.selectedIdx]
				a.page = "detail"
				return a, a.fetchTaskDetail(task.ID)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4

	case snapshotMsg:
		a.timers = msg.Timers
		if len(msg.Notices) > 0 {
			latest := msg.Notices[len(msg.Notices)-1]
			a.message = noticePrefix(latest.Level) + latest.Message
			a.sync.ClearNotices()
		}
		cmds = append(cmds, a.waitForSnapshot())

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}

	case taskDetailMsg:
		a.detailTask = msg.task
		a.detailLogs = msg.logs

	case analyticsMsg:
		a.dashboard = msg.dashboard
		a.breakdown = msg.breakdown

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchTasks()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func noticePrefix(level syncer.NoticeLevel) string {
	if level == syncer.NoticeError {
		return "Error: "
	}
	return ""
}

// --- Commands ---

// waitForSnapshot blocks on the ticker's snapshot stream; each
// delivery re-arms itself from Update.
func (a *App) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-a.ticker.Snapshots())
	}
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		ctx := context.Background()
		var tasks []models.Task
		var err error
		if a.filter == "" {
			tasks, err = a.sync.RefreshTasks(ctx)
		} else {
			tasks, err = a.client.ListTasks(ctx, a.filter, "")
		}
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) fetchTaskDetail(taskID int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		task, err := a.client.GetTask(ctx, taskID)
		if err != nil {
			return errMsg{err}
		}
		logs, _ := a.client.TimeLogsForTask(ctx, taskID)
		return taskDetailMsg{task, logs}
	}
}

func (a *App) fetchAnalytics() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		dash, err := a.client.Dashboard(ctx)
		if err != nil {
			return errMsg{err}
		}
		breakdown, _ := a.client.TimeBreakdown(ctx, "priority")
		return analyticsMsg{dash, breakdown}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		_, err := a.client.Health(context.Background())
		return daemonStatusMsg{online: err == nil}
	}
}

func (a *App) selectedTask() (models.Task, bool) {
	if a.page != "tasks" || len(a.tasks) == 0 {
		return models.Task{}, false
	}
	return a.tasks[a.selectedIdx], true
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	selected, hasSelection := a.selectedTask()

	return func() tea.Msg {
		ctx := context.Background()

		switch cmd {
		case "add":
			if len(args) < 1 {
				return commandResultMsg{"Usage: add <title>"}
			}
			title := strings.Join(args, " ")
			task, err := a.client.CreateTask(ctx, title, "", models.PriorityMedium, "")
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Created task %d", task.ID)}

		case "start":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if err := a.sync.SetStatus(ctx, selected.ID, models.StatusInProgress); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Started '%s'", selected.Title)}

		case "stop":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if err := a.sync.StopTimerForTask(ctx, selected.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Timer stopped for '%s'", selected.Title)}

		case "done":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if err := a.sync.CompleteTask(ctx, selected.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Completed '%s'", selected.Title)}

		case "status":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if len(args) < 1 || !models.ValidStatus(models.TaskStatus(args[0])) {
				return commandResultMsg{"Usage: status <not_started|in_progress|done|blocked>"}
			}
			if err := a.sync.SetStatus(ctx, selected.ID, models.TaskStatus(args[0])); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"Status updated to " + args[0]}

		case "prio":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if len(args) < 1 || !models.ValidPriority(models.Priority(args[0])) {
				return commandResultMsg{"Usage: prio <high|medium|low>"}
			}
			p := models.Priority(args[0])
			if err := a.sync.ApplyEdit(ctx, selected.ID, models.TaskUpdate{Priority: &p}); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"Priority set to " + args[0]}

		case "due":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if len(args) < 1 {
				return commandResultMsg{"Usage: due <YYYY-MM-DD>"}
			}
			if err := a.sync.ApplyEdit(ctx, selected.ID, models.TaskUpdate{DueDate: &args[0]}); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"Due date set to " + args[0]}

		case "rm":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if err := a.client.DeleteTask(ctx, selected.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Deleted '%s'", selected.Title)}

		case "log":
			if !hasSelection {
				return commandResultMsg{"No task selected"}
			}
			if len(args) < 1 {
				return commandResultMsg{"Usage: log <minutes> [notes]"}
			}
			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes <= 0 {
				return commandResultMsg{"Usage: log <minutes> [notes]"}
			}
			notes := strings.Join(args[1:], " ")
			if _, err := a.client.AddManualLog(ctx, selected.ID, minutes, "", notes); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("Logged %dm for '%s'", minutes, selected.Title)}

		case "export":
			scope := "all"
			if len(args) > 0 {
				scope = args[0]
			}
			data, filename, err := a.client.ExportCalendar(ctx, scope)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if err := os.WriteFile(filename, data, 0644); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"Exported to " + filename}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, start, stop, done, status, export)", cmd)}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
