package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [scope]",
	Short: "Export tasks as an iCalendar file",
	Long: `Exports tasks as an RFC 5545 iCalendar file the daemon generates.

Scopes: all (default), undone, overdue, priority/high, priority/medium,
priority/low.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var exportOut string

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: server-suggested name)")
}

func runExport(cmd *cobra.Command, args []string) error {
	scope := "all"
	if len(args) > 0 {
		scope = args[0]
	}

	data, filename, err := apiClient().ExportCalendar(cmd.Context(), scope)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = filename
	}

	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}

	fmt.Printf("Exported %d bytes to %s\n", len(data), out)
	return nil
}
