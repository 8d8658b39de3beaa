package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tmkelly/choreboard/internal/auth"
	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/store"
	"github.com/tmkelly/choreboard/internal/websocket"
)

type HouseholdHandler struct {
	householdStore *store.HouseholdStore
	userStore      *store.UserStore
	hub            *websocket.Hub
}

func NewHouseholdHandler(hs *store.HouseholdStore, us *store.UserStore, hub *websocket.Hub) *HouseholdHandler {
	return &HouseholdHandler{householdStore: hs, userStore: us, hub: hub}
}

func (h *HouseholdHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Bootstrap creates a household with its first admin and the starter
// templates. This is the only unauthenticated API route.
func (h *HouseholdHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		OwnerEmail string `json:"owner_email"`
		OwnerName  string `json:"owner_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.OwnerEmail = strings.TrimSpace(req.OwnerEmail)
	req.OwnerName = strings.TrimSpace(req.OwnerName)
	if req.Name == "" || req.OwnerEmail == "" || req.OwnerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, owner_email, and owner_name are required"})
		return
	}

	if existing, err := h.userStore.GetByEmail(req.OwnerEmail); err == nil && existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already in use"})
		return
	}

	household, owner, err := h.householdStore.Create(req.Name, req.OwnerEmail, req.OwnerName)
	if err != nil {
		writeDomainError(w, err, "failed to create household")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"household": household, "owner": owner})
}

func (h *HouseholdHandler) SetContributionRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContributionRate int `json:"contribution_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ContributionRate < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contribution_rate must be >= 0"})
		return
	}

	household, err := h.householdStore.SetContributionRate(auth.HouseholdID(r.Context()), req.ContributionRate)
	if err != nil {
		writeDomainError(w, err, "failed to update household")
		return
	}

	h.broadcast(websocket.NewMessage("household", "updated", household.ID, nil))

	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and name are required"})
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}
	if req.Role != "admin" && req.Role != "member" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be admin or member"})
		return
	}

	if existing, err := h.userStore.GetByEmail(req.Email); err == nil && existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already in use"})
		return
	}

	user, err := h.userStore.Create(auth.HouseholdID(r.Context()), req.Email, req.Name, req.Role)
	if err != nil {
		writeDomainError(w, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *HouseholdHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list users"})
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
