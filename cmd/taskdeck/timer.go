package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/okempf/taskdeck/internal/syncer"
	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Track time on tasks",
}

var timerStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start a timer on a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerStart,
}

var timerStopCmd = &cobra.Command{
	Use:   "stop [task-id]",
	Short: "Stop the task's running timer",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerStop,
}

var timerActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show running timers",
	RunE:  runTimerActive,
}

var timerLogCmd = &cobra.Command{
	Use:   "log [task-id] [minutes]",
	Short: "Add a manual time log entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runTimerLog,
}

var (
	logDate  string
	logNotes string
)

func init() {
	timerCmd.AddCommand(timerStartCmd, timerStopCmd, timerActiveCmd, timerLogCmd)

	timerLogCmd.Flags().StringVar(&logDate, "date", "", "Date of the work (YYYY-MM-DD, default today)")
	timerLogCmd.Flags().StringVar(&logNotes, "notes", "", "Notes for the entry")
}

func runTimerStart(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	logID, err := apiClient().StartTimer(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Timer started on task %d (log %d)\n", id, logID)
	return nil
}

func runTimerStop(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	if err := apiClient().StopTimer(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Printf("Timer stopped on task %d\n", id)
	return nil
}

func runTimerActive(cmd *cobra.Command, args []string) error {
	timers, err := apiClient().ActiveTimers(cmd.Context())
	if err != nil {
		return err
	}

	if len(timers) == 0 {
		fmt.Println("No timers running")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tTITLE\tPRIORITY\tELAPSED\tSTARTED")
	for _, t := range timers {
		elapsed := syncer.FormatDuration(int64(now.Sub(t.StartTime) / time.Second))
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			t.TaskID, truncate(t.TaskTitle, 40), t.Priority, elapsed,
			t.StartTime.Local().Format("15:04:05"))
	}
	w.Flush()
	return nil
}

func runTimerLog(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	minutes, err := strconv.Atoi(args[1])
	if err != nil || minutes <= 0 {
		return fmt.Errorf("invalid minutes %q", args[1])
	}

	logID, err := apiClient().AddManualLog(cmd.Context(), id, minutes, logDate, logNotes)
	if err != nil {
		return err
	}

	fmt.Printf("Logged %s on task %d (log %d)\n", formatMinutes(minutes), id, logID)
	return nil
}
