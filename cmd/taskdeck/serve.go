package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okempf/taskdeck/internal/server"
	"github.com/okempf/taskdeck/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Taskdeck daemon",
	Long:  `Starts the daemon which owns the task database and serves the HTTP API.`,
	RunE:  runServe,
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".taskdeck", "taskdeck.db")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:7466", "Listen address for the API server")
	serveCmd.Flags().StringVar(&dbPath, "db", defaultDB, "Path to SQLite database")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("Starting Taskdeck daemon...")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return err
	}

	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	srv := server.NewServer(s, listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
