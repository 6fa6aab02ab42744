package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/auth"
	"github.com/dukerupert/famtasks/internal/model"
	"github.com/dukerupert/famtasks/internal/store"
	ws "github.com/dukerupert/famtasks/internal/websocket"
)

const maxMemberNameLen = 64

type FamilyHandler struct {
	families *store.FamilyStore
	hub      *ws.Hub
	now      func() time.Time
	logger   *slog.Logger
}

func NewFamilyHandler(families *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, hub: hub, now: time.Now, logger: logger}
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r)
	if !ok {
		return
	}
	members := f.Members
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Validation("name is required"))
		return
	}
	if len(req.Name) > maxMemberNameLen {
		writeError(w, h.logger, apperr.Validation("name is too long"))
		return
	}

	f, ok := h.load(w, r)
	if !ok {
		return
	}
	if f.HasMember(req.Name) {
		writeError(w, h.logger, apperr.Conflict("a member with that name already exists"))
		return
	}

	m := f.AddMember(model.NewID(), req.Name, h.now().UTC())
	if err := h.families.Save(r.Context(), f); err != nil {
		writeError(w, h.logger, apperr.Persistence("save family "+f.ID, err))
		return
	}

	h.hub.Broadcast(f.ID, ws.NewMessage("member", "created", m.ID, map[string]any{"name": m.Name}))
	writeJSON(w, http.StatusCreated, m)
}

func (h *FamilyHandler) load(w http.ResponseWriter, r *http.Request) (*model.Family, bool) {
	familyID := auth.FamilyID(r.Context())
	f, err := h.families.GetByID(r.Context(), familyID)
	if err != nil {
		writeError(w, h.logger, apperr.Persistence("load family "+familyID, err))
		return nil, false
	}
	if f == nil {
		writeError(w, h.logger, apperr.NotFound("family not found"))
		return nil, false
	}
	return f, true
}
