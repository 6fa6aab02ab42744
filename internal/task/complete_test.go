package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/model"
)

func TestMarkCompleted(t *testing.T) {
	task := model.Task{ID: "t1"}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	now := at.Add(time.Minute)

	if !MarkCompleted(&task, at, now) {
		t.Fatal("expected first completion to apply")
	}
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(at) {
		t.Errorf("completed=%v completed_at=%v, want true %v", task.Completed, task.CompletedAt, at)
	}
	if !task.UpdatedAt.Equal(now) {
		t.Errorf("updated_at = %v, want %v", task.UpdatedAt, now)
	}

	if MarkCompleted(&task, at.Add(time.Hour), now.Add(time.Hour)) {
		t.Error("second completion should be a no-op")
	}
	if !task.CompletedAt.Equal(at) {
		t.Errorf("completed_at changed to %v", task.CompletedAt)
	}
}

func TestCompleteCreditsAssignee(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice", "Bob")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes", AssignedTo: "Alice"})
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	res, err := svc.Complete(context.Background(), "F", "T1", &now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.Task.Completed {
		t.Error("expected completed = true")
	}
	if res.Task.CompletedAt == nil || !res.Task.CompletedAt.Equal(now) {
		t.Errorf("completed_at = %v, want %v", res.Task.CompletedAt, now)
	}
	if !res.Changed {
		t.Error("expected Changed = true on first completion")
	}
	if res.MemberScore == nil || *res.MemberScore != 1 {
		t.Fatalf("member score = %v, want 1", res.MemberScore)
	}
	if got := repo.score("F", "Alice"); got != 1 {
		t.Errorf("Alice score = %d, want 1", got)
	}
	if got := repo.score("F", "Bob"); got != 0 {
		t.Errorf("Bob score = %d, want 0", got)
	}
	if repo.taskSaves != 1 || repo.familySaves != 1 {
		t.Errorf("writes: task=%d family=%d, want 1 and 1", repo.taskSaves, repo.familySaves)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes", AssignedTo: "Alice"})
	first := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, first)
	ctx := context.Background()

	if _, err := svc.Complete(ctx, "F", "T1", nil); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	loadsAfterFirst := repo.familyLoads

	later := first.Add(48 * time.Hour)
	res, err := svc.Complete(ctx, "F", "T1", &later)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !res.Task.Completed {
		t.Error("expected completed = true")
	}
	if !res.Task.CompletedAt.Equal(first) {
		t.Errorf("completed_at = %v, want %v", res.Task.CompletedAt, first)
	}
	if res.Changed {
		t.Error("expected Changed = false on re-completion")
	}
	if res.MemberScore != nil {
		t.Errorf("member score = %d, want omitted on re-completion", *res.MemberScore)
	}
	if got := repo.score("F", "Alice"); got != 1 {
		t.Errorf("Alice score = %d, want 1", got)
	}
	if repo.taskSaves != 1 {
		t.Errorf("task saves = %d, want 1", repo.taskSaves)
	}
	if repo.familyLoads != loadsAfterFirst {
		t.Error("re-completion should not look up the family")
	}
}

func TestCompleteUnassignedLeavesScores(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes"})
	svc := newTestService(repo, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	res, err := svc.Complete(context.Background(), "F", "T1", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.MemberScore != nil {
		t.Errorf("member score = %d, want nil", *res.MemberScore)
	}
	if !res.Task.CompletedAt.Equal(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("completed_at = %v, want clock time", res.Task.CompletedAt)
	}
	if got := repo.score("F", "Alice"); got != 0 {
		t.Errorf("Alice score = %d, want 0", got)
	}
	if repo.familyLoads != 0 || repo.familySaves != 0 {
		t.Errorf("family loads=%d saves=%d, want none", repo.familyLoads, repo.familySaves)
	}
}

func TestCompleteStaleAssignee(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes", AssignedTo: "Zed"})
	svc := newTestService(repo, time.Now())

	res, err := svc.Complete(context.Background(), "F", "T1", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.Task.Completed || res.Task.CompletedAt == nil {
		t.Error("expected task to be completed")
	}
	if res.MemberScore != nil {
		t.Errorf("member score = %d, want nil", *res.MemberScore)
	}
	if got := repo.score("F", "Alice"); got != 0 {
		t.Errorf("Alice score = %d, want 0", got)
	}
	if repo.familySaves != 0 {
		t.Errorf("family saves = %d, want 0", repo.familySaves)
	}
}

func TestCompleteNotFound(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addFamily("G", "Gus")
	repo.addTask(model.Task{ID: "T1", FamilyID: "G", Title: "Other family"})
	svc := newTestService(repo, time.Now())

	_, err := svc.Complete(context.Background(), "F", "T1", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	_, err = svc.Complete(context.Background(), "F", "missing", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCompleteTaskSaveFailure(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes", AssignedTo: "Alice"})
	repo.failTaskSave = true
	svc := newTestService(repo, time.Now())

	_, err := svc.Complete(context.Background(), "F", "T1", nil)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want persistence error", err)
	}
	if !errors.Is(err, errStore) {
		t.Error("expected store error to be wrapped")
	}
	if got := repo.score("F", "Alice"); got != 0 {
		t.Errorf("Alice score = %d, want 0", got)
	}
}

func TestCompleteFamilySaveFailureLeavesTaskCompleted(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F", "Alice")
	repo.addTask(model.Task{ID: "T1", FamilyID: "F", Title: "Dishes", AssignedTo: "Alice"})
	repo.failFamilySav = true
	svc := newTestService(repo, time.Now())
	ctx := context.Background()

	_, err := svc.Complete(ctx, "F", "T1", nil)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want persistence error", err)
	}

	stored, _ := repo.GetByIDAndFamily(ctx, "T1", "F")
	if !stored.Completed {
		t.Error("task write should have happened before the failed family write")
	}
	if got := repo.score("F", "Alice"); got != 0 {
		t.Errorf("Alice score = %d, want 0", got)
	}

	// The partial state is not repaired by calling again.
	repo.failFamilySav = false
	res, err := svc.Complete(ctx, "F", "T1", nil)
	if err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if res.MemberScore != nil {
		t.Error("re-completion must not credit the member")
	}
	if got := repo.score("F", "Alice"); got != 0 {
		t.Errorf("Alice score = %d, want 0", got)
	}
}

func TestCompleteRemovesFromOverdue(t *testing.T) {
	repo := newMemRepo()
	repo.addFamily("F")
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.addTask(model.Task{ID: "T2", FamilyID: "F", Title: "Pay bills", DueDate: &due})
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	ctx := context.Background()

	overdue, err := svc.Overdue(ctx, "F", now)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "T2" {
		t.Fatalf("overdue = %v, want [T2]", overdue)
	}

	if _, err := svc.Complete(ctx, "F", "T2", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	overdue, err = svc.Overdue(ctx, "F", now)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("overdue = %v, want none", overdue)
	}
}
