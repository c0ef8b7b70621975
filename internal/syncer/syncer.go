// Package syncer keeps the client's view of tasks and running timers
// consistent with the backend, which is the sole source of truth and
// is reachable only through request/response calls. It owns the cached
// task list and the active-timer mapping; nothing else writes them.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okempf/taskdeck/internal/api"
	"github.com/okempf/taskdeck/internal/models"
)

// NoticeLevel classifies a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// maxNotices bounds how many notices a snapshot carries.
const maxNotices = 5

// Notice is a transient user-visible message produced by a failed (or
// noteworthy) operation. Background-poll failures never become
// notices.
type Notice struct {
	ID      string
	Level   NoticeLevel
	Message string
	At      time.Time
}

// TimerView is an active timer together with its derived elapsed time.
type TimerView struct {
	models.ActiveTimer
	ElapsedSeconds int64
	Elapsed        string
}

// Snapshot is an immutable view-model of the synchronized state. The
// rendering layer consumes snapshots and never touches the
// synchronizer's internals.
type Snapshot struct {
	Tasks   []models.Task
	Timers  []TimerView
	Notices []Notice
	TakenAt time.Time
}

// HasTimerForTask reports whether the snapshot contains an open timer
// for the given task.
func (s Snapshot) HasTimerForTask(taskID int64) bool {
	for _, t := range s.Timers {
		if t.TaskID == taskID {
			return true
		}
	}
	return false
}

// Synchronizer reconciles the local task/timer view against the
// backend and issues the mutation sequences the task lifecycle
// requires. All state behind mu is mutated only by the methods below.
type Synchronizer struct {
	client *api.Client
	now    func() time.Time

	// Poll-until-visible tuning for freshly started timers. The
	// backend may lag its own writes briefly; polling beats a blind
	// fixed sleep but must stay bounded.
	visibleAttempts int
	visibleDelay    time.Duration

	mu      sync.Mutex
	tasks   []models.Task
	timers  map[int64]models.ActiveTimer
	notices []Notice
	last    Snapshot
}

// New creates a Synchronizer talking to the given API client.
func New(client *api.Client) *Synchronizer {
	return &Synchronizer{
		client:          client,
		now:             time.Now,
		visibleAttempts: 5,
		visibleDelay:    150 * time.Millisecond,
		timers:          make(map[int64]models.ActiveTimer),
	}
}

func (s *Synchronizer) pushNotice(level NoticeLevel, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{
		ID:      uuid.New().String(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      s.now(),
	})
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}

// ClearNotices drops all pending notices (the UI calls this once it
// has shown them).
func (s *Synchronizer) ClearNotices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = nil
}

// RefreshTasks refetches the full task list and replaces the cached
// copy.
func (s *Synchronizer) RefreshTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.client.ListTasks(ctx, "", "")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	return tasks, nil
}

// replaceTimers swaps the active-timer mapping wholesale. Incremental
// merging would let entries the server no longer reports linger.
func (s *Synchronizer) replaceTimers(timers []models.ActiveTimer) {
	m := make(map[int64]models.ActiveTimer, len(timers))
	for _, t := range timers {
		m[t.ID] = t
	}
	s.mu.Lock()
	s.timers = m
	s.mu.Unlock()
}

// refreshTimers refetches the open-timer set; a failure is logged and
// leaves the mapping untouched.
func (s *Synchronizer) refreshTimers(ctx context.Context) error {
	timers, err := s.client.ActiveTimers(ctx)
	if err != nil {
		log.Printf("timer refresh failed: %v", err)
		return err
	}
	s.replaceTimers(timers)
	return nil
}

// StartTimerForTask asks the backend to open a timer for the task,
// then polls the open-timer set until the new timer is visible (or
// the attempt budget runs out — the next periodic tick will pick it
// up). Called after a task transitions to in_progress; a failure is
// surfaced as a notice and does not roll the status change back.
func (s *Synchronizer) StartTimerForTask(ctx context.Context, taskID int64) error {
	if _, err := s.client.StartTimer(ctx, taskID); err != nil {
		s.pushNotice(NoticeError, "Failed to start timer for task %d: %v", taskID, err)
		return err
	}

	for attempt := 0; attempt < s.visibleAttempts; attempt++ {
		timers, err := s.client.ActiveTimers(ctx)
		if err == nil {
			s.replaceTimers(timers)
			for _, t := range timers {
				if t.TaskID == taskID {
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.visibleDelay):
		}
	}
	log.Printf("timer for task %d not visible after %d polls", taskID, s.visibleAttempts)
	return nil
}

// StopTimerForTask asks the backend to close the task's open timer and
// then refreshes the timer view. The backend resolves which timer is
// open; stopping a task with no open timer is not an error.
func (s *Synchronizer) StopTimerForTask(ctx context.Context, taskID int64) error {
	err := s.client.StopTimer(ctx, taskID)
	if err != nil {
		s.pushNotice(NoticeError, "Failed to stop timer for task %d: %v", taskID, err)
	}
	// Full refresh regardless of the stop outcome; the view must
	// follow whatever the server now believes.
	s.refreshTimers(ctx)
	return err
}

// CompleteTask stops the task's timer and then marks it done, in that
// order, so the server accounts the duration up to the actual stop.
// A stop failure is logged and the status write still goes out.
func (s *Synchronizer) CompleteTask(ctx context.Context, taskID int64) error {
	if err := s.client.StopTimer(ctx, taskID); err != nil {
		log.Printf("stop before complete failed for task %d: %v", taskID, err)
	}

	if _, err := s.client.UpdateTaskStatus(ctx, taskID, models.StatusDone); err != nil {
		s.pushNotice(NoticeError, "Failed to complete task %d: %v", taskID, err)
		return err
	}

	s.refreshTimers(ctx)
	if _, err := s.RefreshTasks(ctx); err != nil {
		log.Printf("task refresh after complete failed: %v", err)
	}
	return nil
}

// SetStatus drives the task state machine for a plain status change:
// marking in_progress starts a timer, marking done routes through
// CompleteTask, and any other status stops the open timer first (the
// backend no-ops when there is none).
func (s *Synchronizer) SetStatus(ctx context.Context, taskID int64, status models.TaskStatus) error {
	switch status {
	case models.StatusDone:
		return s.CompleteTask(ctx, taskID)

	case models.StatusInProgress:
		if _, err := s.client.UpdateTaskStatus(ctx, taskID, status); err != nil {
			s.pushNotice(NoticeError, "Failed to update task %d: %v", taskID, err)
			return err
		}
		if _, err := s.RefreshTasks(ctx); err != nil {
			log.Printf("task refresh after status change failed: %v", err)
		}
		// Timer start failure is non-fatal: the status change stands.
		s.StartTimerForTask(ctx, taskID)
		return nil

	default:
		s.StopTimerForTask(ctx, taskID)
		if _, err := s.client.UpdateTaskStatus(ctx, taskID, status); err != nil {
			s.pushNotice(NoticeError, "Failed to update task %d: %v", taskID, err)
			return err
		}
		if _, err := s.RefreshTasks(ctx); err != nil {
			log.Printf("task refresh after status change failed: %v", err)
		}
		return nil
	}
}

// ApplyEdit submits a task edit from the edit form. An edit that moves
// the status away from in_progress stops the task's timer first; the
// status itself is whatever the form specified.
func (s *Synchronizer) ApplyEdit(ctx context.Context, taskID int64, upd models.TaskUpdate) error {
	if upd.Status != nil && *upd.Status != models.StatusInProgress {
		s.StopTimerForTask(ctx, taskID)
	}

	if _, err := s.client.UpdateTask(ctx, taskID, upd); err != nil {
		s.pushNotice(NoticeError, "Failed to update task %d: %v", taskID, err)
		return err
	}

	if upd.Status != nil && *upd.Status == models.StatusInProgress {
		s.StartTimerForTask(ctx, taskID)
	}
	if _, err := s.RefreshTasks(ctx); err != nil {
		log.Printf("task refresh after edit failed: %v", err)
	}
	return nil
}

// Tick is the once-per-second reconciliation: it refetches the
// authoritative open-timer set, replaces the local mapping wholesale,
// and recomputes every elapsed readout. A fetch failure leaves the
// previously displayed values unchanged and is never surfaced — the
// poll runs in the background and flaky connectivity is expected.
func (s *Synchronizer) Tick(ctx context.Context) Snapshot {
	timers, err := s.client.ActiveTimers(ctx)
	if err != nil {
		log.Printf("tick poll failed: %v", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.last
	}

	s.replaceTimers(timers)
	return s.snapshot()
}

// Snapshot returns the current view-model without polling.
func (s *Synchronizer) Snapshot() Snapshot {
	return s.snapshot()
}

func (s *Synchronizer) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := Snapshot{
		Tasks:   append([]models.Task(nil), s.tasks...),
		Notices: append([]Notice(nil), s.notices...),
		TakenAt: now,
	}

	for _, t := range s.timers {
		elapsed := int64(now.Sub(t.StartTime) / time.Second)
		snap.Timers = append(snap.Timers, TimerView{
			ActiveTimer:    t,
			ElapsedSeconds: elapsed,
			Elapsed:        FormatDuration(elapsed),
		})
	}
	sort.Slice(snap.Timers, func(i, j int) bool {
		if !snap.Timers[i].StartTime.Equal(snap.Timers[j].StartTime) {
			return snap.Timers[i].StartTime.After(snap.Timers[j].StartTime)
		}
		return snap.Timers[i].ID < snap.Timers[j].ID
	})

	s.last = snap
	return snap
}
