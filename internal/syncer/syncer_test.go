package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okempf/taskdeck/internal/api"
	"github.com/okempf/taskdeck/internal/models"
)

// fakeBackend is a minimal in-memory stand-in for the daemon that
// records the order of mutating requests.
type fakeBackend struct {
	mu       sync.Mutex
	requests []string

	tasks  []models.Task
	timers []models.ActiveTimer

	failStart      bool
	failStop       bool
	failUpdate     bool
	failActive     bool
	activePollLag  int // active-timer polls to serve stale before timers appear
	activeRequests int
}

func (f *fakeBackend) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
}

func (f *fakeBackend) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.tasks)
	})

	mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failUpdate {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		var upd models.TaskUpdate
		json.NewDecoder(r.Body).Decode(&upd)
		task := models.Task{ID: 1, Title: "t"}
		if upd.Status != nil {
			task.Status = *upd.Status
			for i := range f.tasks {
				f.tasks[i].Status = *upd.Status
			}
		}
		json.NewEncoder(w).Encode(task)
	})

	mux.HandleFunc("/api/timers/active", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.activeRequests++
		if f.failActive {
			http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
			return
		}
		if f.activeRequests <= f.activePollLag {
			json.NewEncoder(w).Encode([]models.ActiveTimer{})
			return
		}
		json.NewEncoder(w).Encode(f.timers)
	})

	mux.HandleFunc("/api/timers/start/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failStart {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"log_id": 7, "message": "Timer started"}`)
	})

	mux.HandleFunc("/api/timers/stop/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failStop {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		if len(f.timers) == 0 {
			fmt.Fprint(w, `{"message": "No active timer found"}`)
			return
		}
		f.timers = nil
		fmt.Fprint(w, `{"message": "Timer stopped"}`)
	})

	return mux
}

func newTestSyncer(t *testing.T, f *fakeBackend) (*Synchronizer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	s := New(api.NewClient(srv.URL))
	s.visibleDelay = time.Millisecond
	return s, srv
}

func timerFixture(id, taskID int64, start time.Time) models.ActiveTimer {
	return models.ActiveTimer{
		ID:        id,
		TaskID:    taskID,
		TaskTitle: fmt.Sprintf("task %d", taskID),
		Priority:  models.PriorityMedium,
		StartTime: start,
	}
}

func TestCompleteTaskStopsBeforeMarkingDone(t *testing.T) {
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(1, 1, time.Now())},
	}
	s, _ := newTestSyncer(t, f)

	if err := s.CompleteTask(context.Background(), 1); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	reqs := f.recorded()
	stopIdx, doneIdx := -1, -1
	for i, r := range reqs {
		if r == "POST /api/timers/stop/1" && stopIdx == -1 {
			stopIdx = i
		}
		if r == "PUT /api/tasks/1" && doneIdx == -1 {
			doneIdx = i
		}
	}
	if stopIdx == -1 || doneIdx == -1 {
		t.Fatalf("missing stop or status write, got %v", reqs)
	}
	if stopIdx > doneIdx {
		t.Errorf("stop arrived after status write: %v", reqs)
	}
}

func TestCompleteTaskStopFailureStillWritesDone(t *testing.T) {
	f := &fakeBackend{failStop: true}
	s, _ := newTestSyncer(t, f)

	if err := s.CompleteTask(context.Background(), 1); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	reqs := f.recorded()
	found := false
	for _, r := range reqs {
		if r == "PUT /api/tasks/1" {
			found = true
		}
	}
	if !found {
		t.Errorf("status write never issued after stop failure: %v", reqs)
	}
}

func TestCompleteTaskStatusFailureSurfacesNotice(t *testing.T) {
	f := &fakeBackend{failUpdate: true}
	s, _ := newTestSyncer(t, f)

	if err := s.CompleteTask(context.Background(), 1); err == nil {
		t.Fatal("expected error when status write fails")
	}

	snap := s.Snapshot()
	if len(snap.Notices) == 0 {
		t.Fatal("expected a notice after failed complete")
	}
	if snap.Notices[0].Level != NoticeError {
		t.Errorf("notice level = %q, want error", snap.Notices[0].Level)
	}
}

func TestStopTimerWithNoOpenTimerIsNotAnError(t *testing.T) {
	f := &fakeBackend{}
	s, _ := newTestSyncer(t, f)

	if err := s.StopTimerForTask(context.Background(), 1); err != nil {
		t.Fatalf("StopTimerForTask: %v", err)
	}
	if snap := s.Snapshot(); len(snap.Notices) != 0 {
		t.Errorf("unexpected notices: %v", snap.Notices)
	}
}

func TestTickReplacesTimersWholesale(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	f := &fakeBackend{
		timers: []models.ActiveTimer{
			timerFixture(1, 1, start),
			timerFixture(2, 2, start),
		},
	}
	s, _ := newTestSyncer(t, f)

	snap := s.Tick(context.Background())
	if len(snap.Timers) != 2 {
		t.Fatalf("first tick: %d timers, want 2", len(snap.Timers))
	}

	// Timer 1 closed elsewhere; the next poll must drop it even though
	// the client never saw a stop request.
	f.mu.Lock()
	f.timers = []models.ActiveTimer{timerFixture(2, 2, start)}
	f.mu.Unlock()

	snap = s.Tick(context.Background())
	if len(snap.Timers) != 1 {
		t.Fatalf("second tick: %d timers, want 1", len(snap.Timers))
	}
	if snap.Timers[0].TaskID != 2 {
		t.Errorf("survivor = task %d, want 2", snap.Timers[0].TaskID)
	}
}

func TestTickFailureKeepsPreviousSnapshot(t *testing.T) {
	start := time.Now().Add(-30 * time.Second)
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(1, 1, start)},
	}
	s, _ := newTestSyncer(t, f)

	first := s.Tick(context.Background())
	if len(first.Timers) != 1 {
		t.Fatalf("first tick: %d timers, want 1", len(first.Timers))
	}

	f.mu.Lock()
	f.failActive = true
	f.mu.Unlock()

	second := s.Tick(context.Background())
	if len(second.Timers) != 1 {
		t.Fatalf("failed tick: %d timers, want the previous 1", len(second.Timers))
	}
	if second.Timers[0].Elapsed != first.Timers[0].Elapsed {
		t.Errorf("failed tick changed elapsed readout: %q -> %q",
			first.Timers[0].Elapsed, second.Timers[0].Elapsed)
	}
	if len(second.Notices) != len(first.Notices) {
		t.Errorf("background poll failure produced a notice")
	}
}

func TestTickElapsedFormatting(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(1, 1, base.Add(-125 * time.Second))},
	}
	s, _ := newTestSyncer(t, f)
	s.now = func() time.Time { return base }

	snap := s.Tick(context.Background())
	if len(snap.Timers) != 1 {
		t.Fatalf("%d timers, want 1", len(snap.Timers))
	}
	if snap.Timers[0].ElapsedSeconds != 125 {
		t.Errorf("elapsed = %d, want 125", snap.Timers[0].ElapsedSeconds)
	}
	if snap.Timers[0].Elapsed != "2m 5s" {
		t.Errorf("formatted = %q, want %q", snap.Timers[0].Elapsed, "2m 5s")
	}
}

func TestStartTimerPollsUntilVisible(t *testing.T) {
	f := &fakeBackend{
		timers:        []models.ActiveTimer{timerFixture(7, 3, time.Now())},
		activePollLag: 2,
	}
	s, _ := newTestSyncer(t, f)

	if err := s.StartTimerForTask(context.Background(), 3); err != nil {
		t.Fatalf("StartTimerForTask: %v", err)
	}

	if !s.Snapshot().HasTimerForTask(3) {
		t.Error("timer not visible after start")
	}

	polls := 0
	for _, r := range f.recorded() {
		if strings.HasSuffix(r, "/api/timers/active") {
			polls++
		}
	}
	if polls < 2 {
		t.Errorf("expected repeated visibility polls, got %d", polls)
	}
}

func TestSetStatusInProgressStartsTimer(t *testing.T) {
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(7, 1, time.Now())},
	}
	s, _ := newTestSyncer(t, f)

	if err := s.SetStatus(context.Background(), 1, models.StatusInProgress); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	reqs := f.recorded()
	putIdx, startIdx := -1, -1
	for i, r := range reqs {
		if r == "PUT /api/tasks/1" && putIdx == -1 {
			putIdx = i
		}
		if r == "POST /api/timers/start/1" && startIdx == -1 {
			startIdx = i
		}
	}
	if putIdx == -1 || startIdx == -1 {
		t.Fatalf("missing status write or timer start: %v", reqs)
	}
	if putIdx > startIdx {
		t.Errorf("timer started before status write: %v", reqs)
	}
}

func TestSetStatusStartFailureKeepsStatusChange(t *testing.T) {
	f := &fakeBackend{
		tasks:     []models.Task{{ID: 1, Title: "t", Status: models.StatusNotStarted}},
		failStart: true,
	}
	s, _ := newTestSyncer(t, f)

	// The timer could not be opened, but the status write already
	// landed; the action must not report failure or roll it back.
	if err := s.SetStatus(context.Background(), 1, models.StatusInProgress); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	statusWritten := false
	for _, r := range f.recorded() {
		if r == "PUT /api/tasks/1" {
			statusWritten = true
		}
	}
	if !statusWritten {
		t.Fatalf("status write never issued: %v", f.recorded())
	}

	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Status != models.StatusInProgress {
		t.Errorf("task list after failed start = %+v, want in_progress", snap.Tasks)
	}
	if len(snap.Notices) != 1 || snap.Notices[0].Level != NoticeError {
		t.Errorf("notices = %+v, want one error notice", snap.Notices)
	}
	if snap.HasTimerForTask(1) {
		t.Error("failed start left a phantom timer in the view")
	}
}

func TestSetStatusAwayFromInProgressStopsTimer(t *testing.T) {
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(7, 1, time.Now())},
	}
	s, _ := newTestSyncer(t, f)

	if err := s.SetStatus(context.Background(), 1, models.StatusBlocked); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	reqs := f.recorded()
	stopIdx, putIdx := -1, -1
	for i, r := range reqs {
		if r == "POST /api/timers/stop/1" && stopIdx == -1 {
			stopIdx = i
		}
		if r == "PUT /api/tasks/1" && putIdx == -1 {
			putIdx = i
		}
	}
	if stopIdx == -1 || putIdx == -1 {
		t.Fatalf("missing stop or status write: %v", reqs)
	}
	if stopIdx > putIdx {
		t.Errorf("status written before timer stop: %v", reqs)
	}
}

func TestApplyEditStatusChangeStopsTimerFirst(t *testing.T) {
	f := &fakeBackend{
		timers: []models.ActiveTimer{timerFixture(7, 1, time.Now())},
	}
	s, _ := newTestSyncer(t, f)

	blocked := models.StatusBlocked
	if err := s.ApplyEdit(context.Background(), 1, models.TaskUpdate{Status: &blocked}); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	reqs := f.recorded()
	if len(reqs) == 0 || reqs[0] != "POST /api/timers/stop/1" {
		t.Errorf("edit away from in_progress must stop the timer first: %v", reqs)
	}
}

func TestNoticesAreBoundedAndClearable(t *testing.T) {
	f := &fakeBackend{failUpdate: true}
	s, _ := newTestSyncer(t, f)

	for i := 0; i < maxNotices+3; i++ {
		s.CompleteTask(context.Background(), int64(i+1))
	}

	snap := s.Snapshot()
	if len(snap.Notices) != maxNotices {
		t.Errorf("%d notices, want cap of %d", len(snap.Notices), maxNotices)
	}

	s.ClearNotices()
	if snap := s.Snapshot(); len(snap.Notices) != 0 {
		t.Errorf("%d notices after clear, want 0", len(snap.Notices))
	}
}
