package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/famtasks/internal/model"
)

var errStore = errors.New("store unavailable")

// memRepo keeps copies of tasks and families and counts writes.
type memRepo struct {
	mu            sync.Mutex
	tasks         []*model.Task
	families      map[string]*model.Family
	taskSaves     int
	familySaves   int
	familyLoads   int
	failTaskSave  bool
	failFamilyGet bool
	failFamilySav bool
}

func newMemRepo() *memRepo {
	return &memRepo{families: make(map[string]*model.Family)}
}

func copyTask(t *model.Task) *model.Task {
	c := *t
	c.Comments = append([]model.Comment{}, t.Comments...)
	return &c
}

func copyFamily(f *model.Family) *model.Family {
	c := *f
	c.Members = append([]model.Member(nil), f.Members...)
	return &c
}

func (r *memRepo) GetByIDAndFamily(_ context.Context, id, familyID string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id && t.FamilyID == familyID {
			return copyTask(t), nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByFamily(_ context.Context, familyID string, filter model.TaskFilter) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Task{}
	for _, t := range r.tasks {
		if t.FamilyID != familyID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		if filter.AssignedTo != nil && t.AssignedTo != *filter.AssignedTo {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, *copyTask(t))
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTaskSave {
		return errStore
	}
	r.taskSaves++
	for i, existing := range r.tasks {
		if existing.ID == t.ID {
			r.tasks[i] = copyTask(t)
			return nil
		}
	}
	r.tasks = append(r.tasks, copyTask(t))
	return nil
}

func (r *memRepo) Delete(_ context.Context, id, familyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tasks {
		if t.ID == id && t.FamilyID == familyID {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// familyRepo adapts memRepo to FamilyRepository.
type familyRepo struct{ *memRepo }

func (r familyRepo) GetByID(_ context.Context, id string) (*model.Family, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.familyLoads++
	if r.failFamilyGet {
		return nil, errStore
	}
	f, ok := r.families[id]
	if !ok {
		return nil, nil
	}
	return copyFamily(f), nil
}

func (r familyRepo) SaveMemberScore(_ context.Context, familyID string, m model.Member, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFamilySav {
		return errStore
	}
	f, ok := r.families[familyID]
	if !ok {
		return errStore
	}
	for i := range f.Members {
		if f.Members[i].ID == m.ID {
			r.familySaves++
			f.Members[i] = model.RestoreMember(m.ID, m.Name, m.Score(), m.CreatedAt)
			f.UpdatedAt = updatedAt
			return nil
		}
	}
	return errStore
}

func (r *memRepo) addFamily(id string, members ...string) {
	f := &model.Family{ID: id, Name: "Family " + id}
	for i, name := range members {
		f.AddMember(fmt.Sprintf("%s-m%d", id, i), name, time.Time{})
	}
	r.families[id] = f
}

func (r *memRepo) addTask(t model.Task) {
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	r.tasks = append(r.tasks, copyTask(&t))
}

func (r *memRepo) score(familyID, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.families[familyID].FindMember(name)
	if !ok {
		return -1
	}
	return m.Score()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(repo *memRepo, now time.Time) *Service {
	n := 0
	return NewService(repo, familyRepo{repo}, discardLogger(),
		WithClock(fixedClock(now)),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithLocation(time.UTC),
	)
}
