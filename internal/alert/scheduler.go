// Package alert pushes overdue task notifications to connected clients.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/famtasks/internal/model"
	ws "github.com/dukerupert/famtasks/internal/websocket"
)

// FamilyLister yields the families that may have overdue tasks.
type FamilyLister interface {
	ListFamilyIDsWithDueTasks(ctx context.Context) ([]string, error)
}

type OverdueFinder interface {
	Overdue(ctx context.Context, familyID string, now time.Time) ([]model.Task, error)
}

type Broadcaster interface {
	Broadcast(familyID string, msg ws.Message)
}

// Scheduler periodically looks for overdue tasks and announces each one once
// per overdue spell. A task that stops being overdue (completed, due date
// moved, deleted) is forgotten and announced again if it becomes overdue.
type Scheduler struct {
	mu       sync.RWMutex
	families FamilyLister
	finder   OverdueFinder
	hub      Broadcaster
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// family id -> task ids already announced
	sent map[string]map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(families FamilyLister, finder OverdueFinder, hub Broadcaster, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		families: families,
		finder:   finder,
		hub:      hub,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		sent:     make(map[string]map[string]struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, s.now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	familyIDs, err := s.families.ListFamilyIDsWithDueTasks(ctx)
	if err != nil {
		s.logger.Error("list families", "error", err)
		return
	}

	seen := make(map[string]struct{}, len(familyIDs))
	for _, fid := range familyIDs {
		seen[fid] = struct{}{}
		s.checkFamily(ctx, fid, now)
	}

	s.mu.Lock()
	for fid := range s.sent {
		if _, ok := seen[fid]; !ok {
			delete(s.sent, fid)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) checkFamily(ctx context.Context, familyID string, now time.Time) {
	overdue, err := s.finder.Overdue(ctx, familyID, now)
	if err != nil {
		s.logger.Error("find overdue tasks", "family_id", familyID, "error", err)
		return
	}

	s.mu.Lock()
	prev := s.sent[familyID]
	current := make(map[string]struct{}, len(overdue))
	var fresh []model.Task
	for _, t := range overdue {
		current[t.ID] = struct{}{}
		if _, ok := prev[t.ID]; !ok {
			fresh = append(fresh, t)
		}
	}
	if len(current) == 0 {
		delete(s.sent, familyID)
	} else {
		s.sent[familyID] = current
	}
	s.mu.Unlock()

	for _, t := range fresh {
		extra := map[string]any{
			"title":    t.Title,
			"due_date": t.DueDate,
		}
		if t.AssignedTo != "" {
			extra["assigned_to"] = t.AssignedTo
		}
		s.hub.Broadcast(familyID, ws.NewMessage("task", "overdue", t.ID, extra))
	}
	if len(fresh) > 0 {
		s.logger.Info("overdue alerts sent", "family_id", familyID, "count", len(fresh))
	}
}
