package main

import (
	"fmt"
	"os"

	"github.com/okempf/taskdeck/internal/api"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Taskdeck - task and time tracking",
	Long:  `Taskdeck is a task manager with built-in time tracking, analytics, and calendar export. It runs a local daemon and talks to it over HTTP.`,
}

var apiAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
}

// apiClient builds the typed client every subcommand shares.
func apiClient() *api.Client {
	return api.NewClient(apiAddr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
