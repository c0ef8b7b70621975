package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okempf/taskdeck/internal/models"
)

func TestErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetTask(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API error (404)") {
		t.Errorf("error %q missing status code", err)
	}
	if !strings.Contains(err.Error(), "task not found") {
		t.Errorf("error %q missing response body", err)
	}
}

func TestMutationsCarryClientID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Client-ID")
		fmt.Fprint(w, `{"message":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.StopTimer(context.Background(), 1); err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	if gotID == "" {
		t.Error("X-Client-ID header not sent")
	}
	if gotID != c.ClientID() {
		t.Errorf("header %q != ClientID %q", gotID, c.ClientID())
	}
}

func TestListTasksQueryEncoding(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.ListTasks(context.Background(), models.StatusInProgress, models.PriorityHigh); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if !strings.Contains(gotQuery, "status=in_progress") || !strings.Contains(gotQuery, "priority=high") {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestRequestsHonorContext(t *testing.T) {
	var served bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL)
	_, err := c.ListTasks(ctx, "", "")
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if served {
		t.Error("request reached the server despite canceled context")
	}
}

func TestExportFilenameFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Disposition header
		fmt.Fprint(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, filename, err := c.ExportCalendar(context.Background(), "all")
	if err != nil {
		t.Fatalf("ExportCalendar: %v", err)
	}
	if filename != "tasks.ics" {
		t.Errorf("fallback filename = %q", filename)
	}
}

func TestHealthReturnsPayloadOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"ok":false,"db":"disk I/O error","version":"0.3.0"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	h, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if h == nil || h.OK || h.DB != "disk I/O error" {
		t.Errorf("payload = %+v", h)
	}
}
