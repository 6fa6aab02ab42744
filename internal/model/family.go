package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewID returns an opaque identifier for families, members, tasks and comments.
func NewID() string {
	return uuid.NewString()
}

type Family struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	JoinCode     string    `json:"join_code"`
	PasswordHash string    `json:"-"`
	Members      []Member  `json:"members"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Member is owned by its Family. The score is only ever changed through
// Family.CreditCompletion.
type Member struct {
	ID        string
	Name      string
	CreatedAt time.Time
	score     int
}

// RestoreMember rebuilds a member loaded from storage with its persisted score.
func RestoreMember(id, name string, score int, createdAt time.Time) Member {
	return Member{ID: id, Name: name, CreatedAt: createdAt, score: score}
}

func (m Member) Score() int {
	return m.score
}

func (m Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Score     int       `json:"score"`
		CreatedAt time.Time `json:"created_at"`
	}{m.ID, m.Name, m.score, m.CreatedAt})
}

// FindMember returns the member with exactly the given name.
func (f *Family) FindMember(name string) (*Member, bool) {
	for i := range f.Members {
		if f.Members[i].Name == name {
			return &f.Members[i], true
		}
	}
	return nil, false
}

// HasMember reports whether a member with the given name exists.
func (f *Family) HasMember(name string) bool {
	_, ok := f.FindMember(name)
	return ok
}

// AddMember appends a new member with a zero score.
func (f *Family) AddMember(id, name string, now time.Time) Member {
	m := Member{ID: id, Name: name, CreatedAt: now}
	f.Members = append(f.Members, m)
	f.UpdatedAt = now
	return m
}

// CreditCompletion increments the named member's score by one and returns
// the new score. It reports false when no member has that name.
func (f *Family) CreditCompletion(name string) (int, bool) {
	m, ok := f.FindMember(name)
	if !ok {
		return 0, false
	}
	m.score++
	return m.score, true
}
