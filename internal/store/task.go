package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/famtasks/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assignedTo sql.NullString
	var dueDate, completedAt sql.NullTime
	var completed int

	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Description, &t.Priority,
		&assignedTo, &dueDate, &completed, &completedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AssignedTo = assignedTo.String
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	t.Completed = completed != 0
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	t.Comments = []model.Comment{}
	return &t, nil
}

const taskCols = `id, family_id, title, description, priority, assigned_to, due_date, completed, completed_at, created_at, updated_at`

// GetByIDAndFamily returns nil when the task does not exist or belongs to
// another family.
func (s *TaskStore) GetByIDAndFamily(ctx context.Context, id, familyID string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = ? AND family_id = ?`,
		id, familyID,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	comments, err := s.listComments(ctx, `WHERE c.task_id = ?`, id)
	if err != nil {
		return nil, err
	}
	t.Comments = append(t.Comments, comments[id]...)
	return t, nil
}

// ListByFamily returns the family's tasks in creation order.
func (s *TaskStore) ListByFamily(ctx context.Context, familyID string, filter model.TaskFilter) ([]model.Task, error) {
	where := []string{"family_id = ?"}
	args := []any{familyID}
	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, boolInt(*filter.Completed))
	}
	if filter.AssignedTo != nil {
		where = append(where, "assigned_to = ?")
		args = append(args, *filter.AssignedTo)
	}
	if filter.Priority != nil {
		where = append(where, "priority = ?")
		args = append(args, string(*filter.Priority))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at ASC, rowid ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	rows.Close()

	comments, err := s.listComments(ctx, `JOIN tasks t ON t.id = c.task_id WHERE t.family_id = ?`, familyID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Comments = append(tasks[i].Comments, comments[tasks[i].ID]...)
	}
	return tasks, nil
}

func (s *TaskStore) listComments(ctx context.Context, clause string, arg any) (map[string][]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.task_id, c.id, c.member, c.text, c.created_at FROM task_comments c `+clause+` ORDER BY c.rowid ASC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	byTask := make(map[string][]model.Comment)
	for rows.Next() {
		var taskID string
		var c model.Comment
		if err := rows.Scan(&taskID, &c.ID, &c.Member, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		byTask[taskID] = append(byTask[taskID], c)
	}
	return byTask, rows.Err()
}

// Save upserts the task document. The owning family is written on insert
// only, and comments already stored are left untouched.
func (s *TaskStore) Save(ctx context.Context, t *model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var assignedTo sql.NullString
	if t.AssignedTo != "" {
		assignedTo = sql.NullString{String: t.AssignedTo, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   priority = excluded.priority,
		   assigned_to = excluded.assigned_to,
		   due_date = excluded.due_date,
		   completed = excluded.completed,
		   completed_at = excluded.completed_at,
		   updated_at = excluded.updated_at
		 WHERE tasks.family_id = excluded.family_id`,
		t.ID, t.FamilyID, t.Title, t.Description, string(t.Priority),
		assignedTo, nullTime(t.DueDate), boolInt(t.Completed), nullTime(t.CompletedAt),
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}

	if len(t.Comments) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO task_comments (id, task_id, member, text, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
		)
		if err != nil {
			return fmt.Errorf("prepare stmt: %w", err)
		}
		defer stmt.Close()

		for _, c := range t.Comments {
			if _, err := stmt.ExecContext(ctx, c.ID, t.ID, c.Member, c.Text, c.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("insert comment %s: %w", c.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes the task and its comments. It reports whether a task of
// that family was removed.
func (s *TaskStore) Delete(ctx context.Context, id, familyID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListFamilyIDsWithDueTasks returns families holding at least one incomplete
// task with a due date.
func (s *TaskStore) ListFamilyIDsWithDueTasks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT family_id FROM tasks WHERE completed = 0 AND due_date IS NOT NULL ORDER BY family_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list family ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
