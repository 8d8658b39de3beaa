package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmkelly/choreboard/internal/auth"
	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/store"
	"github.com/tmkelly/choreboard/internal/websocket"
)

type TaskHandler struct {
	taskStore *store.TaskStore
	generator *store.Generator
	hub       *websocket.Hub
}

func NewTaskHandler(ts *store.TaskStore, g *store.Generator, hub *websocket.Hub) *TaskHandler {
	return &TaskHandler{taskStore: ts, generator: g, hub: hub}
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type taskRequest struct {
	Title          string `json:"title"`
	Category       string `json:"category"`
	AssigneeID     *int64 `json:"assignee_id"`
	TemplateID     *int64 `json:"template_id"`
	PointsProposed *int   `json:"points_proposed"`
	DueDate        string `json:"due_date"`
	MealPlanDayID  *int64 `json:"meal_plan_day_id"`
	MealSlot       string `json:"meal_slot"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.DueDate != "" {
		if _, err := time.Parse(model.DateLayout, req.DueDate); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "due_date must be YYYY-MM-DD"})
			return
		}
	}

	task, err := h.taskStore.Create(store.CreateTaskParams{
		HouseholdID:    auth.HouseholdID(r.Context()),
		Title:          req.Title,
		Category:       req.Category,
		CreatedBy:      auth.UserID(r.Context()),
		AssigneeID:     req.AssigneeID,
		TemplateID:     req.TemplateID,
		PointsProposed: req.PointsProposed,
		DueDate:        req.DueDate,
		MealPlanDayID:  req.MealPlanDayID,
		MealSlot:       model.MealSlot(req.MealSlot),
	})
	if err != nil {
		writeDomainError(w, err, "failed to create task")
		return
	}

	h.broadcast(websocket.NewMessage("task", "created", task.ID, nil))

	writeJSON(w, http.StatusCreated, task)
}

// List serves the household's tasks. Catch-up generation (recurring rules,
// then meal-plan linking) runs first so the list is current; a generation
// failure is logged and the list is served anyway.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	household := auth.HouseholdID(r.Context())
	actor := auth.UserID(r.Context())

	filter := model.TaskFilter(r.URL.Query().Get("filter"))
	switch filter {
	case "":
		filter = model.FilterAssignedToMe
	case model.FilterAssignedToMe, model.FilterAll, model.FilterCompleted:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown filter"})
		return
	}

	created, err := h.generator.Run(household, time.Now(), actor)
	if err != nil {
		slog.Warn("catch-up generation", "household", household, "error", err)
	}
	for _, id := range created {
		task, err := h.taskStore.GetByID(household, id)
		if err != nil || task == nil {
			continue
		}
		source := "recurring"
		if task.MealPlanDayID != nil {
			source = "meal_plan"
		}
		h.broadcast(websocket.NewMessage("task", "created", id, map[string]any{"source": source}))
	}

	tasks, err := h.taskStore.List(household, filter, actor)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.GetByID(auth.HouseholdID(r.Context()), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.Claim(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "failed to claim task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "claimed", id, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.Start(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "failed to start task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "started", id, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	// Body is optional; without points_actual the proposed/template/zero
	// fallback applies.
	var req struct {
		PointsActual *int `json:"points_actual"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	task, err := h.taskStore.Complete(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()), req.PointsActual)
	if err != nil {
		writeDomainError(w, err, "failed to complete task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "completed", id, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.Approve(auth.HouseholdID(r.Context()), id, auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "failed to approve task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "approved", id, nil))

	// Mirror the credit the store just wrote: assignee, falling back to the
	// claimant for tasks that never carried an assignment.
	recipient := task.AssigneeID
	if recipient == nil {
		recipient = task.ClaimantID
	}
	if recipient != nil {
		amount := 0
		if task.PointsActual != nil {
			amount = *task.PointsActual
		}
		h.broadcast(websocket.NewMessage("points", "credited", *recipient, map[string]any{
			"task_id": id,
			"amount":  amount,
		}))
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.Cancel(auth.HouseholdID(r.Context()), id)
	if err != nil {
		writeDomainError(w, err, "failed to cancel task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "cancelled", id, nil))

	writeJSON(w, http.StatusOK, task)
}
