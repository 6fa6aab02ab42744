package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famtasks/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.JoinCode, &f.PasswordHash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, name, join_code, password_hash, created_at, updated_at`

// Create inserts the family and any members it already carries.
func (s *FamilyStore) Create(ctx context.Context, f *model.Family) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO families (`+familyCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.JoinCode, f.PasswordHash, f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert family: %w", err)
	}
	if err := upsertMembers(ctx, tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *FamilyStore) GetByID(ctx context.Context, id string) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	return s.load(ctx, row)
}

func (s *FamilyStore) GetByJoinCode(ctx context.Context, code string) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE join_code = ?`, code)
	return s.load(ctx, row)
}

func (s *FamilyStore) load(ctx context.Context, row *sql.Row) (*model.Family, error) {
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}

	members, err := s.listMembers(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	f.Members = members
	return f, nil
}

func (s *FamilyStore) listMembers(ctx context.Context, familyID string) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, score, created_at FROM members WHERE family_id = ? ORDER BY sort_order ASC, created_at ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		var (
			id, name  string
			score     int
			createdAt time.Time
		)
		if err := rows.Scan(&id, &name, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, model.RestoreMember(id, name, score, createdAt))
	}
	return members, rows.Err()
}

func (s *FamilyStore) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM families WHERE join_code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check join code: %w", err)
	}
	return count > 0, nil
}

func (s *FamilyStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM families WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check family: %w", err)
	}
	return count > 0, nil
}

// Save replaces the stored family document: the family row and every member
// it carries, in registry order. Existing member scores are left as stored;
// only SaveMemberScore changes them.
func (s *FamilyStore) Save(ctx context.Context, f *model.Family) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE families SET name = ?, join_code = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		f.Name, f.JoinCode, f.PasswordHash, f.UpdatedAt.UTC(), f.ID,
	)
	if err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("update family %s: %w", f.ID, sql.ErrNoRows)
	}

	if err := upsertMembers(ctx, tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertMembers(ctx context.Context, tx *sql.Tx, f *model.Family) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO members (id, family_id, name, score, sort_order, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order
		 WHERE members.family_id = excluded.family_id`,
	)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, m := range f.Members {
		if _, err := stmt.ExecContext(ctx, m.ID, f.ID, m.Name, m.Score(), i, m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("upsert member %s: %w", m.ID, err)
		}
	}
	return nil
}

// SaveMemberScore persists a credited member score. The stored score never
// goes down, so a write computed from an older copy cannot undo a newer one.
func (s *FamilyStore) SaveMemberScore(ctx context.Context, familyID string, m model.Member, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE members SET score = MAX(score, ?) WHERE id = ? AND family_id = ?`,
		m.Score(), m.ID, familyID,
	)
	if err != nil {
		return fmt.Errorf("update member score: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("update member %s: %w", m.ID, sql.ErrNoRows)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE families SET updated_at = ? WHERE id = ?`, updatedAt.UTC(), familyID,
	); err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	return tx.Commit()
}
