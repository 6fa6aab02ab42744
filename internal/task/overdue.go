package task

import (
	"context"
	"time"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/model"
)

// OverdueSummary is the alert view of an overdue task.
type OverdueSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	DueDate    time.Time `json:"due_date"`
}

// IsOverdue reports whether t is incomplete with a due date strictly before now.
func IsOverdue(t model.Task, now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// FindOverdue keeps the overdue tasks in their original order.
func FindOverdue(tasks []model.Task, now time.Time) []model.Task {
	overdue := []model.Task{}
	for _, t := range tasks {
		if IsOverdue(t, now) {
			overdue = append(overdue, t)
		}
	}
	return overdue
}

// Summarize projects overdue tasks to their alert view. Every task must
// have a due date.
func Summarize(tasks []model.Task) []OverdueSummary {
	out := make([]OverdueSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, OverdueSummary{ID: t.ID, Title: t.Title, AssignedTo: t.AssignedTo, DueDate: *t.DueDate})
	}
	return out
}

// Overdue lists the family's incomplete tasks that are past due at now.
func (s *Service) Overdue(ctx context.Context, familyID string, now time.Time) ([]model.Task, error) {
	open := false
	tasks, err := s.tasks.ListByFamily(ctx, familyID, model.TaskFilter{Completed: &open})
	if err != nil {
		return nil, apperr.Persistence("list tasks", err)
	}
	return FindOverdue(tasks, now), nil
}

// Now returns the service clock's current instant.
func (s *Service) Now() time.Time {
	return s.now()
}
