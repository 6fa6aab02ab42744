package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famtasks/internal/auth"
	"github.com/dukerupert/famtasks/internal/task"
)

type StatsHandler struct {
	tasks  *task.Service
	logger *slog.Logger
}

func NewStatsHandler(tasks *task.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{tasks: tasks, logger: logger}
}

func (h *StatsHandler) Members(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.MemberStatistics(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) History(w http.ResponseWriter, r *http.Request) {
	period, err := task.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	buckets, err := h.tasks.History(r.Context(), auth.FamilyID(r.Context()), period)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (h *StatsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.tasks.Overdue(r.Context(), auth.FamilyID(r.Context()), h.tasks.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task.Summarize(overdue))
}
