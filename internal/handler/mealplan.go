package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmkelly/choreboard/internal/auth"
	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/store"
	"github.com/tmkelly/choreboard/internal/websocket"
)

type MealPlanHandler struct {
	mealStore         *store.MealPlanStore
	contributionStore *store.ContributionStore
	hub               *websocket.Hub
}

func NewMealPlanHandler(ms *store.MealPlanStore, cs *store.ContributionStore, hub *websocket.Hub) *MealPlanHandler {
	return &MealPlanHandler{mealStore: ms, contributionStore: cs, hub: hub}
}

func (h *MealPlanHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func parseDateParam(r *http.Request) (string, bool) {
	date := r.PathValue("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", false
	}
	return date, true
}

func (h *MealPlanHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	day, err := h.mealStore.GetDayByDate(auth.HouseholdID(r.Context()), date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get meal plan"})
		return
	}
	if day == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no plan for that date"})
		return
	}

	selections, err := h.mealStore.SelectionsForDay(day.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get selections"})
		return
	}
	if selections == nil {
		selections = []model.MealPlanSelection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "selections": selections})
}

// PutSlot upserts the day, replaces one slot's dishes, and records a
// contribution for the actor. Editing a plan counts toward the contribution
// credit even if the slot already had a generated task.
func (h *MealPlanHandler) PutSlot(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	slot := model.MealSlot(r.PathValue("slot"))
	if slot != model.SlotLunch && slot != model.SlotDinner {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slot must be lunch or dinner"})
		return
	}

	var req struct {
		Dishes     []string `json:"dishes"`
		AssigneeID *int64   `json:"assignee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	household := auth.HouseholdID(r.Context())
	actor := auth.UserID(r.Context())

	day, err := h.mealStore.UpsertDay(household, date, req.AssigneeID)
	if err != nil {
		writeDomainError(w, err, "failed to save meal plan")
		return
	}
	selections, err := h.mealStore.ReplaceSelections(day.ID, slot, req.Dishes)
	if err != nil {
		writeDomainError(w, err, "failed to save selections")
		return
	}

	// The edit stands even if contribution accounting fails.
	credited, err := h.contributionStore.Record(household, actor)
	if err != nil {
		slog.Error("record contribution", "action", "meal_plan_edit", "user", actor, "error", err)
	} else {
		slog.Info("contribution recorded", "action", "meal_plan_edit", "user", actor, "credited", credited)
	}

	h.broadcast(websocket.NewMessage("meal_plan", "updated", day.ID, map[string]any{
		"date": date,
		"slot": string(slot),
	}))
	if credited {
		h.broadcast(websocket.NewMessage("points", "credited", actor, map[string]any{
			"reason": "contribution",
		}))
	}

	if selections == nil {
		selections = []model.MealPlanSelection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "selections": selections})
}
