package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/auth"
	"github.com/dukerupert/famtasks/internal/model"
	"github.com/dukerupert/famtasks/internal/task"
	ws "github.com/dukerupert/famtasks/internal/websocket"
)

type TaskHandler struct {
	tasks  *task.Service
	hub    *ws.Hub
	logger *slog.Logger
}

func NewTaskHandler(tasks *task.Service, hub *ws.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, hub: hub, logger: logger}
}

type taskFieldsRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	DueDate     *time.Time     `json:"due_date"`
}

func (req taskFieldsRequest) fields() task.Fields {
	return task.Fields{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		taskFieldsRequest
		AssignedTo string `json:"assigned_to"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	familyID := auth.FamilyID(r.Context())
	t, err := h.tasks.Create(r.Context(), familyID, req.fields(), req.AssignedTo)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(familyID, ws.NewMessage("task", "created", t.ID, nil))
	writeJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tasks, err := h.tasks.List(r.Context(), auth.FamilyID(r.Context()), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), auth.FamilyID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req taskFieldsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	familyID := auth.FamilyID(r.Context())
	t, err := h.tasks.Update(r.Context(), familyID, r.PathValue("id"), req.fields())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(familyID, ws.NewMessage("task", "updated", t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := r.PathValue("id")
	if err := h.tasks.Delete(r.Context(), familyID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(familyID, ws.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssignedTo string `json:"assigned_to"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	familyID := auth.FamilyID(r.Context())
	t, err := h.tasks.Assign(r.Context(), familyID, r.PathValue("id"), req.AssignedTo)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(familyID, ws.NewMessage("task", "assigned", t.ID, map[string]any{"assigned_to": t.AssignedTo}))
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Member string `json:"member"`
		Text   string `json:"text"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	familyID := auth.FamilyID(r.Context())
	id := r.PathValue("id")
	c, err := h.tasks.AddComment(r.Context(), familyID, id, req.Member, req.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(familyID, ws.NewMessage("task", "commented", id, map[string]any{"comment_id": c.ID}))
	writeJSON(w, http.StatusCreated, c)
}

type completeResponse struct {
	ID          string     `json:"id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	MemberScore *int       `json:"member_score,omitempty"`
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompletedAt *time.Time `json:"completed_at"`
	}
	if !decodeJSON(w, r, &req, true) {
		return
	}

	familyID := auth.FamilyID(r.Context())
	res, err := h.tasks.Complete(r.Context(), familyID, r.PathValue("id"), req.CompletedAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if res.Changed {
		var extra map[string]any
		if res.MemberScore != nil {
			extra = map[string]any{
				"assigned_to":  res.Task.AssignedTo,
				"member_score": *res.MemberScore,
			}
		}
		h.hub.Broadcast(familyID, ws.NewMessage("task", "completed", res.Task.ID, extra))
	}

	writeJSON(w, http.StatusOK, completeResponse{
		ID:          res.Task.ID,
		Completed:   res.Task.Completed,
		CompletedAt: res.Task.CompletedAt,
		MemberScore: res.MemberScore,
	})
}

func parseTaskFilter(r *http.Request) (model.TaskFilter, error) {
	var filter model.TaskFilter
	q := r.URL.Query()

	if v := q.Get("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperr.Validation("completed must be true or false")
		}
		filter.Completed = &completed
	}
	if q.Has("assigned_to") {
		assignee := q.Get("assigned_to")
		filter.AssignedTo = &assignee
	}
	if v := q.Get("priority"); v != "" {
		p := model.Priority(v)
		filter.Priority = &p
	}
	return filter, nil
}
