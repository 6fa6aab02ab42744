package task

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/model"
)

// MemberStats is one member's task counts and stored score.
type MemberStats struct {
	Member         string `json:"member"`
	TotalTasks     int    `json:"total_tasks"`
	CompletedTasks int    `json:"completed_tasks"`
	Score          int    `json:"score"`
}

// Period selects week or month history buckets.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "week" or "month"; empty means week.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	}
	return "", apperr.Validation("period must be week or month")
}

// Bucket counts the tasks created within one period.
type Bucket struct {
	Period    string `json:"period"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// MemberSummaries counts assigned and completed tasks per member, in
// registry order. Score is the member's stored counter.
func MemberSummaries(members []model.Member, tasks []model.Task) []MemberStats {
	stats := make([]MemberStats, 0, len(members))
	for _, m := range members {
		st := MemberStats{Member: m.Name, Score: m.Score()}
		for _, t := range tasks {
			if t.AssignedTo != m.Name {
				continue
			}
			st.TotalTasks++
			if t.Completed {
				st.CompletedTasks++
			}
		}
		stats = append(stats, st)
	}
	return stats
}

// History groups tasks by the week or month of their creation in loc and
// returns the buckets in ascending key order.
func History(tasks []model.Task, period Period, loc *time.Location) []Bucket {
	if loc == nil {
		loc = time.Local
	}

	acc := make(map[string]*Bucket)
	for _, t := range tasks {
		key := BucketKey(t.CreatedAt, period, loc)
		b, ok := acc[key]
		if !ok {
			b = &Bucket{Period: key}
			acc[key] = b
		}
		b.Total++
		if t.Completed {
			b.Completed++
		}
	}

	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, *acc[k])
	}
	return buckets
}

// BucketKey returns "YYYY-MM" for months and "YYYY-Www" for weeks.
func BucketKey(t time.Time, period Period, loc *time.Location) string {
	t = t.In(loc)
	if period == PeriodMonth {
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
	return fmt.Sprintf("%04d-W%02d", t.Year(), WeekOfYear(t))
}

// WeekOfYear numbers weeks from 1 with weeks starting on Sunday:
// ceil((days since Jan 1 + weekday of Jan 1 + 1) / 7).
func WeekOfYear(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := t.YearDay() - 1
	return (days + int(jan1.Weekday()) + 1 + 6) / 7
}

// MemberStatistics summarizes every registered member of the family.
func (s *Service) MemberStatistics(ctx context.Context, familyID string) ([]MemberStats, error) {
	f, err := s.loadFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByFamily(ctx, familyID, model.TaskFilter{})
	if err != nil {
		return nil, apperr.Persistence("list tasks", err)
	}
	return MemberSummaries(f.Members, tasks), nil
}

// History buckets the family's tasks by creation period in the service location.
func (s *Service) History(ctx context.Context, familyID string, period Period) ([]Bucket, error) {
	tasks, err := s.tasks.ListByFamily(ctx, familyID, model.TaskFilter{})
	if err != nil {
		return nil, apperr.Persistence("list tasks", err)
	}
	return History(tasks, period, s.loc), nil
}
