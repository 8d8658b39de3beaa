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

type RewardHandler struct {
	rewardStore *store.RewardStore
	hub         *websocket.Hub
}

func NewRewardHandler(rs *store.RewardStore, hub *websocket.Hub) *RewardHandler {
	return &RewardHandler{rewardStore: rs, hub: hub}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PointCost   int    `json:"point_cost"`
	Active      *bool  `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.PointCost <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "point_cost must be > 0"})
		return
	}

	reward, err := h.rewardStore.CreateReward(auth.HouseholdID(r.Context()), req.Title, req.Description, req.PointCost)
	if err != nil {
		writeDomainError(w, err, "failed to create reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", reward.ID, nil))

	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rewards, err := h.rewardStore.ListRewards(auth.HouseholdID(r.Context()), activeOnly)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	household := auth.HouseholdID(r.Context())
	existing, err := h.rewardStore.GetReward(household, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.PointCost <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "point_cost must be > 0"})
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewardStore.UpdateReward(household, id, req.Title, req.Description, req.PointCost, active)
	if err != nil {
		writeDomainError(w, err, "failed to update reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "updated", id, nil))

	writeJSON(w, http.StatusOK, reward)
}

// Request records the actor's wish to spend points on a reward. The cost is
// snapshotted now; an admin approves or rejects it later.
func (h *RewardHandler) Request(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	household := auth.HouseholdID(r.Context())
	reward, err := h.rewardStore.GetReward(household, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if reward == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}
	if !reward.Active {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reward is not active"})
		return
	}

	use, err := h.rewardStore.RequestUse(household, id, auth.UserID(r.Context()), reward.PointCost)
	if err != nil {
		writeDomainError(w, err, "failed to request reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward_use", "requested", use.ID, nil))

	writeJSON(w, http.StatusCreated, use)
}

func (h *RewardHandler) ListUses(w http.ResponseWriter, r *http.Request) {
	status := model.RewardUseStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.RewardUseRequested, model.RewardUseApproved, model.RewardUseRejected:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	uses, err := h.rewardStore.ListUses(auth.HouseholdID(r.Context()), status)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reward uses"})
		return
	}
	if uses == nil {
		uses = []model.RewardUse{}
	}
	writeJSON(w, http.StatusOK, uses)
}

func (h *RewardHandler) ApproveUse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	use, err := h.rewardStore.ApproveUse(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "failed to approve reward use")
		return
	}
	if use == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward use not found"})
		return
	}

	h.broadcast(websocket.NewMessage("reward_use", "approved", id, nil))
	h.broadcast(websocket.NewMessage("points", "debited", use.UserID, map[string]any{
		"reward_use_id": id,
		"amount":        use.CostPoints,
	}))

	writeJSON(w, http.StatusOK, use)
}

func (h *RewardHandler) RejectUse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	use, err := h.rewardStore.RejectUse(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "failed to reject reward use")
		return
	}
	if use == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward use not found"})
		return
	}

	h.broadcast(websocket.NewMessage("reward_use", "rejected", id, nil))

	writeJSON(w, http.StatusOK, use)
}
