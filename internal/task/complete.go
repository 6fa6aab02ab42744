package task

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/model"
)

// Completion is the outcome of completing a task. Changed is false when the
// task was already completed. MemberScore is set only when this call credited
// a member.
type Completion struct {
	Task        *model.Task
	Changed     bool
	MemberScore *int
}

// MarkCompleted applies the false->true completion transition. It reports
// false and leaves t untouched when t is already completed.
func MarkCompleted(t *model.Task, at, now time.Time) bool {
	if t.Completed {
		return false
	}
	t.Completed = true
	t.CompletedAt = &at
	t.UpdatedAt = now
	return true
}

// Complete marks the task completed at occurredAt (or now) and credits the
// assigned member with one point.
//
// The task is written before the family. If the family write fails the task
// stays completed without the credit; that state is logged and returned as a
// persistence error, never retried. The stored score never goes down, but
// concurrent credits computed from the same loaded score land as one.
func (s *Service) Complete(ctx context.Context, familyID, taskID string, occurredAt *time.Time) (*Completion, error) {
	ctx, span := s.tracer.Start(ctx, "task.Complete", trace.WithAttributes(
		attribute.String("family.id", familyID),
		attribute.String("task.id", taskID),
	))
	defer span.End()

	t, err := s.lookup(ctx, familyID, taskID)
	if err != nil {
		return nil, fail(span, err)
	}

	now := s.now()
	at := now
	if occurredAt != nil {
		at = *occurredAt
	}
	if !MarkCompleted(t, at, now) {
		span.SetAttributes(attribute.Bool("task.already_completed", true))
		return &Completion{Task: t}, nil
	}

	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, fail(span, apperr.Persistence("save task", err))
	}

	result := &Completion{Task: t, Changed: true}
	if t.AssignedTo == "" {
		return result, nil
	}

	f, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		s.logger.Error("task completed but score not credited", "task_id", t.ID, "family_id", familyID, "error", err)
		return nil, fail(span, apperr.Persistence("load family", err))
	}
	if f == nil {
		return result, nil
	}

	score, ok := f.CreditCompletion(t.AssignedTo)
	if !ok {
		s.logger.Debug("assignee not in registry", "task_id", t.ID, "assigned_to", t.AssignedTo)
		return result, nil
	}
	m, _ := f.FindMember(t.AssignedTo)
	if err := s.families.SaveMemberScore(ctx, f.ID, *m, now); err != nil {
		s.logger.Error("task completed but score not credited", "task_id", t.ID, "family_id", familyID, "error", err)
		return nil, fail(span, apperr.Persistence("save family", err))
	}

	span.SetAttributes(attribute.Int("member.score", score))
	result.MemberScore = &score
	return result, nil
}
