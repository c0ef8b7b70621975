package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Analytics and database info",
}

var statsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the analytics dashboard",
	RunE:  runStatsDashboard,
}

var statsBreakdownCmd = &cobra.Command{
	Use:   "breakdown [priority|status]",
	Short: "Show logged time broken down by priority or status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatsBreakdown,
}

var statsDBCmd = &cobra.Command{
	Use:   "db",
	Short: "Show database row counts",
	RunE:  runStatsDB,
}

var statsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tasks and time logs",
	RunE:  runStatsClear,
}

var clearYes bool

func init() {
	statsCmd.AddCommand(statsDashboardCmd, statsBreakdownCmd, statsDBCmd, statsClearCmd)

	statsClearCmd.Flags().BoolVar(&clearYes, "yes", false, "Skip the confirmation prompt")
}

func runStatsDashboard(cmd *cobra.Command, args []string) error {
	d, err := apiClient().Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Tasks:            %d (%.1f%% complete)\n", d.TotalTasks, d.CompletionRate)
	fmt.Printf("Completed today:  %d\n", d.CompletedToday)
	fmt.Printf("Created today:    %d\n", d.CreatedToday)
	fmt.Printf("Done this week:   %d\n", d.CompletedThisWeek)
	fmt.Printf("Overdue:          %d\n", d.OverdueCount)
	fmt.Printf("Blocked:          %d\n", d.BlockedCount)
	fmt.Printf("Time logged:      %s\n", d.TotalLoggedFormatted)

	fmt.Println("\nBy status:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for status, count := range d.StatusCounts {
		fmt.Fprintf(w, "  %s\t%d\n", status, count)
	}
	w.Flush()

	fmt.Println("\nBy priority:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for priority, count := range d.PriorityCounts {
		fmt.Fprintf(w, "  %s\t%d\n", priority, count)
	}
	w.Flush()
	return nil
}

func runStatsBreakdown(cmd *cobra.Command, args []string) error {
	dimension := args[0]
	if dimension != "priority" && dimension != "status" {
		return fmt.Errorf("unknown dimension %q (want priority or status)", dimension)
	}

	breakdown, err := apiClient().TimeBreakdown(cmd.Context(), dimension)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(breakdown))
	for k := range breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tTIME\tSHARE\n", strings.ToUpper(dimension))
	for _, k := range keys {
		slice := breakdown[k]
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", k, slice.Formatted, slice.Percentage)
	}
	w.Flush()
	return nil
}

func runStatsDB(cmd *cobra.Command, args []string) error {
	stats, err := apiClient().DatabaseStats(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	tables := make([]string, 0, len(stats))
	for t := range stats {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(w, "%s\t%d\n", t, stats[t])
	}
	w.Flush()
	return nil
}

func runStatsClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Print("This deletes ALL tasks and time logs. Type 'yes' to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := apiClient().ClearDatabase(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Database cleared")
	return nil
}
