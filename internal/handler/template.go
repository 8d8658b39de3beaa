package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tmkelly/choreboard/internal/auth"
	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/store"
	"github.com/tmkelly/choreboard/internal/websocket"
)

type TemplateHandler struct {
	templateStore *store.TemplateStore
	ruleStore     *store.RuleStore
	hub           *websocket.Hub
}

func NewTemplateHandler(ts *store.TemplateStore, rs *store.RuleStore, hub *websocket.Hub) *TemplateHandler {
	return &TemplateHandler{templateStore: ts, ruleStore: rs, hub: hub}
}

func (h *TemplateHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateStore.List(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list templates"})
		return
	}
	if templates == nil {
		templates = []model.TaskTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Category      string `json:"category"`
		DefaultPoints *int   `json:"default_points"`
		Instructions  string `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.DefaultPoints != nil && *req.DefaultPoints < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "default_points must be >= 0"})
		return
	}

	template, err := h.templateStore.Create(auth.HouseholdID(r.Context()), req.Name, req.Category, req.DefaultPoints, req.Instructions)
	if err != nil {
		writeDomainError(w, err, "failed to create template")
		return
	}

	h.broadcast(websocket.NewMessage("task_template", "created", template.ID, nil))

	writeJSON(w, http.StatusCreated, template)
}

func (h *TemplateHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleStore.List(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rules"})
		return
	}
	if rules == nil {
		rules = []model.RecurringTaskRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *TemplateHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID  int64  `json:"template_id"`
		Frequency   string `json:"frequency"`
		AssigneeID  *int64 `json:"assignee_id"`
		NextRunDate string `json:"next_run_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	frequency := model.Frequency(req.Frequency)
	switch frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "frequency must be daily, weekly, or monthly"})
		return
	}
	if _, err := time.Parse(model.DateLayout, req.NextRunDate); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "next_run_date must be YYYY-MM-DD"})
		return
	}

	household := auth.HouseholdID(r.Context())
	template, err := h.templateStore.GetByID(household, req.TemplateID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check template"})
		return
	}
	if template == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template not found"})
		return
	}

	rule, err := h.ruleStore.Create(household, req.TemplateID, frequency, req.AssigneeID, req.NextRunDate)
	if err != nil {
		writeDomainError(w, err, "failed to create rule")
		return
	}

	h.broadcast(websocket.NewMessage("recurring_rule", "created", rule.ID, nil))

	writeJSON(w, http.StatusCreated, rule)
}

func (h *TemplateHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	household := auth.HouseholdID(r.Context())
	existing, err := h.ruleStore.GetByID(household, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get rule"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}

	rule, err := h.ruleStore.Deactivate(household, id)
	if err != nil {
		writeDomainError(w, err, "failed to deactivate rule")
		return
	}

	h.broadcast(websocket.NewMessage("recurring_rule", "deactivated", id, nil))

	writeJSON(w, http.StatusOK, rule)
}
