package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/okempf/taskdeck/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details and time log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Change a task's status (not_started, in_progress, done, blocked)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [task-id]",
	Short: "Delete a task and its time logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var (
	taskTitle    string
	taskDesc     string
	taskPriority string
	taskDue      string
	listStatus   string
	listPriority string
	listOverdue  bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskEditCmd, taskStatusCmd, taskRmCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "medium", "Priority (high, medium, low)")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	taskListCmd.Flags().StringVar(&listPriority, "priority", "", "Filter by priority")
	taskListCmd.Flags().BoolVar(&listOverdue, "overdue", false, "Show only overdue tasks")

	taskEditCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskEditCmd.Flags().StringVar(&taskPriority, "priority", "", "New priority")
	taskEditCmd.Flags().StringVar(&taskDue, "due", "", "New due date (YYYY-MM-DD)")
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	p := models.Priority(taskPriority)
	if !models.ValidPriority(p) {
		return fmt.Errorf("invalid priority %q", taskPriority)
	}

	task, err := apiClient().CreateTask(cmd.Context(), taskTitle, taskDesc, p, taskDue)
	if err != nil {
		return err
	}

	fmt.Printf("Created task %d: %s\n", task.ID, task.Title)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	client := apiClient()

	var tasks []models.Task
	var err error
	if listOverdue {
		tasks, err = client.OverdueTasks(cmd.Context())
	} else {
		tasks, err = client.ListTasks(cmd.Context(), models.TaskStatus(listStatus), models.Priority(listPriority))
	}
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tLOGGED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, truncate(t.Title, 40), t.Status, t.Priority, t.DueDate, formatMinutes(t.LoggedMinutes))
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	client := apiClient()
	task, err := client.GetTask(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %d\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	if task.Description != "" {
		fmt.Printf("Description: %s\n", task.Description)
	}
	fmt.Printf("Status:      %s\n", task.Status)
	fmt.Printf("Priority:    %s\n", task.Priority)
	if task.DueDate != "" {
		fmt.Printf("Due:         %s\n", task.DueDate)
	}
	fmt.Printf("Logged:      %s\n", formatMinutes(task.LoggedMinutes))
	fmt.Printf("Created:     %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Updated:     %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04"))

	logs, err := client.TimeLogsForTask(cmd.Context(), id)
	if err != nil || len(logs) == 0 {
		return nil
	}

	fmt.Println("\nTime log:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STARTED\tDURATION\tNOTES")
	for _, entry := range logs {
		fmt.Fprintf(w, "  %s\t%s\t%s\n",
			entry.StartTime.Local().Format("2006-01-02 15:04"),
			formatMinutes(entry.DurationMinutes),
			truncate(entry.Notes, 50))
	}
	w.Flush()
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	var upd models.TaskUpdate
	if cmd.Flags().Changed("title") {
		upd.Title = &taskTitle
	}
	if cmd.Flags().Changed("desc") {
		upd.Description = &taskDesc
	}
	if cmd.Flags().Changed("priority") {
		p := models.Priority(taskPriority)
		if !models.ValidPriority(p) {
			return fmt.Errorf("invalid priority %q", taskPriority)
		}
		upd.Priority = &p
	}
	if cmd.Flags().Changed("due") {
		upd.DueDate = &taskDue
	}

	task, err := apiClient().UpdateTask(cmd.Context(), id, upd)
	if err != nil {
		return err
	}

	fmt.Printf("Updated task %d: %s\n", task.ID, task.Title)
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	status := models.TaskStatus(args[1])
	if !models.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", args[1])
	}

	client := apiClient()

	// Closing out a task also closes its open timer, in that order, so
	// the final stretch of work is accounted.
	if status == models.StatusDone {
		if err := client.StopTimer(cmd.Context(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to stop timer: %v\n", err)
		}
	}

	task, err := client.UpdateTaskStatus(cmd.Context(), id, status)
	if err != nil {
		return err
	}

	fmt.Printf("Task %d is now %s\n", task.ID, task.Status)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	if err := apiClient().DeleteTask(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Printf("Deleted task %d\n", id)
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
