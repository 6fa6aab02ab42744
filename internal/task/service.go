// Package task holds the task lifecycle: creation and assignment, the
// completion and scoring engine, member statistics, history buckets and
// overdue detection.
package task

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/model"
)

const tracerName = "github.com/dukerupert/famtasks/internal/task"

// TaskRepository is the task persistence the service depends on.
// Lookups return a nil task when nothing matches.
type TaskRepository interface {
	GetByIDAndFamily(ctx context.Context, id, familyID string) (*model.Task, error)
	ListByFamily(ctx context.Context, familyID string, filter model.TaskFilter) ([]model.Task, error)
	Save(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id, familyID string) (bool, error)
}

// FamilyRepository loads Family aggregates and persists credited scores.
type FamilyRepository interface {
	GetByID(ctx context.Context, id string) (*model.Family, error)
	SaveMemberScore(ctx context.Context, familyID string, m model.Member, updatedAt time.Time) error
}

type Service struct {
	tasks    TaskRepository
	families FamilyRepository
	now      func() time.Time
	newID    func() string
	loc      *time.Location
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

// WithClock overrides the source of the current instant.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the generator used for new tasks and comments.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLocation sets the time zone used to derive history bucket keys.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(tasks TaskRepository, families FamilyRepository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		tasks:    tasks,
		families: families,
		now:      time.Now,
		newID:    model.NewID,
		loc:      time.Local,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fields are the user-editable parts of a task.
type Fields struct {
	Title       string
	Description string
	Priority    model.Priority
	DueDate     *time.Time
}

func (f *Fields) normalize() error {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return apperr.Validation("title is required")
	}
	if f.Priority == "" {
		f.Priority = model.PriorityMedium
	}
	if !f.Priority.Valid() {
		return apperr.Validation("priority must be one of low, medium, high")
	}
	return nil
}

// Create adds a task to the family. A non-empty assignee must name an
// existing member.
func (s *Service) Create(ctx context.Context, familyID string, fields Fields, assignedTo string) (*model.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.Create", trace.WithAttributes(attribute.String("family.id", familyID)))
	defer span.End()

	if err := fields.normalize(); err != nil {
		return nil, fail(span, err)
	}
	assignedTo = strings.TrimSpace(assignedTo)
	if err := s.checkAssignee(ctx, familyID, assignedTo); err != nil {
		return nil, fail(span, err)
	}

	now := s.now()
	t := &model.Task{
		ID:          s.newID(),
		FamilyID:    familyID,
		Title:       fields.Title,
		Description: fields.Description,
		Priority:    fields.Priority,
		AssignedTo:  assignedTo,
		DueDate:     fields.DueDate,
		Comments:    []model.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, fail(span, apperr.Persistence("save task", err))
	}
	span.SetAttributes(attribute.String("task.id", t.ID))
	return t, nil
}

func (s *Service) Get(ctx context.Context, familyID, id string) (*model.Task, error) {
	return s.lookup(ctx, familyID, id)
}

func (s *Service) List(ctx context.Context, familyID string, filter model.TaskFilter) ([]model.Task, error) {
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, apperr.Validation("priority must be one of low, medium, high")
	}
	tasks, err := s.tasks.ListByFamily(ctx, familyID, filter)
	if err != nil {
		return nil, apperr.Persistence("list tasks", err)
	}
	return tasks, nil
}

// Update replaces the editable fields. Assignment and completion state are
// left as they are.
func (s *Service) Update(ctx context.Context, familyID, id string, fields Fields) (*model.Task, error) {
	if err := fields.normalize(); err != nil {
		return nil, err
	}
	t, err := s.lookup(ctx, familyID, id)
	if err != nil {
		return nil, err
	}

	t.Title = fields.Title
	t.Description = fields.Description
	t.Priority = fields.Priority
	t.DueDate = fields.DueDate
	t.UpdatedAt = s.now()
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, apperr.Persistence("save task", err)
	}
	return t, nil
}

// Assign sets or clears the assignee. Scores already credited for the task
// are not moved.
func (s *Service) Assign(ctx context.Context, familyID, id, assignedTo string) (*model.Task, error) {
	assignedTo = strings.TrimSpace(assignedTo)
	if err := s.checkAssignee(ctx, familyID, assignedTo); err != nil {
		return nil, err
	}
	t, err := s.lookup(ctx, familyID, id)
	if err != nil {
		return nil, err
	}

	t.AssignedTo = assignedTo
	t.UpdatedAt = s.now()
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, apperr.Persistence("save task", err)
	}
	return t, nil
}

// AddComment appends a comment. The member name is free text.
func (s *Service) AddComment(ctx context.Context, familyID, id, member, text string) (*model.Comment, error) {
	member = strings.TrimSpace(member)
	text = strings.TrimSpace(text)
	if member == "" {
		return nil, apperr.Validation("member is required")
	}
	if text == "" {
		return nil, apperr.Validation("text is required")
	}
	t, err := s.lookup(ctx, familyID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := model.Comment{ID: s.newID(), Member: member, Text: text, CreatedAt: now}
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = now
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, apperr.Persistence("save task", err)
	}
	return &c, nil
}

func (s *Service) Delete(ctx context.Context, familyID, id string) error {
	deleted, err := s.tasks.Delete(ctx, id, familyID)
	if err != nil {
		return apperr.Persistence("delete task", err)
	}
	if !deleted {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, familyID, id string) (*model.Task, error) {
	t, err := s.tasks.GetByIDAndFamily(ctx, id, familyID)
	if err != nil {
		return nil, apperr.Persistence("load task", err)
	}
	if t == nil {
		return nil, apperr.NotFound("task not found")
	}
	return t, nil
}

func (s *Service) loadFamily(ctx context.Context, familyID string) (*model.Family, error) {
	f, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, apperr.Persistence("load family", err)
	}
	if f == nil {
		return nil, apperr.NotFound("family not found")
	}
	return f, nil
}

func (s *Service) checkAssignee(ctx context.Context, familyID, name string) error {
	if name == "" {
		return nil
	}
	f, err := s.loadFamily(ctx, familyID)
	if err != nil {
		return err
	}
	if !f.HasMember(name) {
		return apperr.Validation("assignee is not a member of this family")
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
