package handler

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/famtasks/internal/apperr"
	"github.com/dukerupert/famtasks/internal/auth"
	"github.com/dukerupert/famtasks/internal/model"
	"github.com/dukerupert/famtasks/internal/store"
)

const (
	joinCodeLength   = 8
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxJoinCodeTries = 5
	minPasswordLen   = 8
	maxPasswordLen   = 72 // bcrypt input limit
)

type AuthHandler struct {
	families *store.FamilyStore
	issuer   *auth.TokenIssuer
	now      func() time.Time
	logger   *slog.Logger
}

func NewAuthHandler(families *store.FamilyStore, issuer *auth.TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		families: families,
		issuer:   issuer,
		now:      time.Now,
		logger:   logger,
	}
}

type authResponse struct {
	Family    *model.Family `json:"family"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Register creates a family with a fresh join code and returns a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Validation("name is required"))
		return
	}
	if len(req.Password) < minPasswordLen || len(req.Password) > maxPasswordLen {
		writeError(w, h.logger, apperr.Validation(
			fmt.Sprintf("password must be %d to %d characters", minPasswordLen, maxPasswordLen),
		))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("hash password: %w", err))
		return
	}

	code, err := h.uniqueJoinCode(r.Context())
	if err != nil {
		writeError(w, h.logger, apperr.Persistence("generate join code", err))
		return
	}

	now := h.now().UTC()
	f := &model.Family{
		ID:           model.NewID(),
		Name:         req.Name,
		JoinCode:     code,
		PasswordHash: string(hash),
		Members:      []model.Member{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.families.Create(r.Context(), f); err != nil {
		writeError(w, h.logger, apperr.Persistence("create family", err))
		return
	}

	h.logger.Info("family registered", "family_id", f.ID)
	h.respondWithToken(w, http.StatusCreated, f)
}

// Login exchanges a join code and password for a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JoinCode string `json:"join_code"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.JoinCode))
	if code == "" || req.Password == "" {
		writeError(w, h.logger, apperr.Validation("join_code and password are required"))
		return
	}

	f, err := h.families.GetByJoinCode(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, apperr.Persistence("login lookup", err))
		return
	}
	if f == nil || bcrypt.CompareHashAndPassword([]byte(f.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, h.logger, apperr.Unauthorized("invalid join code or password"))
		return
	}

	h.respondWithToken(w, http.StatusOK, f)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, f *model.Family) {
	token, expires, err := h.issuer.Issue(f.ID)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("issue token for family %s: %w", f.ID, err))
		return
	}
	writeJSON(w, status, authResponse{Family: f, Token: token, ExpiresAt: expires})
}

func (h *AuthHandler) uniqueJoinCode(ctx context.Context) (string, error) {
	for range maxJoinCodeTries {
		code, err := generateJoinCode()
		if err != nil {
			return "", err
		}
		exists, err := h.families.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free join code after %d attempts", maxJoinCodeTries)
}

func generateJoinCode() (string, error) {
	limit := big.NewInt(int64(len(joinCodeAlphabet)))
	b := make([]byte, joinCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
