package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/middleware"
	"github.com/reflecta/reflecta/internal/models"
	"github.com/reflecta/reflecta/internal/repositories"
)

const (
	minPasswordLength  = 8
	invalidCredentials = "Invalid email or password."
	maxRequestBody     = 64 << 10
)

// AuthHandler implements the credential exchange and profile endpoints.
type AuthHandler struct {
	Accounts AccountStore
	Tokens   TokenIssuer
	NowFunc  func() time.Time
	// HashCost overrides bcrypt.DefaultCost; tests lower it.
	HashCost int
}

// Login handles POST /api/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasTokens", h.Tokens != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "Authentication is temporarily unavailable.")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	account, err := h.Accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login account lookup failed", "email", req.Email, "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "Unable to sign in right now.")
			return
		}
		logger.Warn("login unknown account", "email", req.Email)
		respondMessage(ctx, w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", account.ID)
		respondMessage(ctx, w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	h.respondSession(ctx, w, http.StatusOK, account)
}

// Register handles POST /api/auth/register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasTokens", h.Tokens != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "Authentication is temporarily unavailable.")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		logger.Warn("register missing fields", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "Name, email and password are required.")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("register invalid email", "email", req.Email, "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "Please enter a valid email address.")
		return
	}

	if len(req.Password) < minPasswordLength {
		logger.Warn("register password too short", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost())
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Unable to create your account right now.")
		return
	}

	now := h.now()
	account := models.Account{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("register conflict", "email", req.Email)
			respondMessage(ctx, w, http.StatusConflict, "An account with this email already exists.")
			return
		}
		logger.Error("register failed to create account", "error", err, "email", req.Email)
		respondMessage(ctx, w, http.StatusInternalServerError, "Unable to create your account right now.")
		return
	}

	h.respondSession(ctx, w, http.StatusCreated, account)
}

// Profile handles GET /api/auth/profile requests. It must sit behind
// middleware.RequireBearer.
func (h AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, middleware.SessionExpiredMessage)
		return
	}

	account, err := h.Accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("profile for deleted account", "userId", userID)
			respondMessage(ctx, w, http.StatusUnauthorized, middleware.SessionExpiredMessage)
			return
		}
		logger.Error("profile lookup failed", "userId", userID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Unable to load your profile.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, account.Profile())
}

func (h AuthHandler) respondSession(ctx context.Context, w http.ResponseWriter, status int, account models.Account) {
	token, err := h.Tokens.Issue(account.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue token", "error", err, "userId", account.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "Unable to start a session right now.")
		return
	}
	respondJSON(ctx, w, status, models.Session{Token: token, User: account.Profile()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h AuthHandler) hashCost() int {
	if h.HashCost > 0 {
		return h.HashCost
	}
	return bcrypt.DefaultCost
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"message": message})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
