package handler

import (
	"net/http"

	"github.com/tmkelly/choreboard/internal/auth"
	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/store"
)

type LedgerHandler struct {
	ledgerStore *store.LedgerStore
	userStore   *store.UserStore
}

func NewLedgerHandler(ls *store.LedgerStore, us *store.UserStore) *LedgerHandler {
	return &LedgerHandler{ledgerStore: ls, userStore: us}
}

// householdUser resolves {id} to a user in the caller's household, writing
// the error response itself when it returns nil.
func (h *LedgerHandler) householdUser(w http.ResponseWriter, r *http.Request) *model.User {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}

	user, err := h.userStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get user"})
		return nil
	}
	if user == nil || user.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return nil
	}
	return user
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	user := h.householdUser(w, r)
	if user == nil {
		return
	}

	balance, err := h.ledgerStore.Balance(user.HouseholdID, user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get balance"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "balance": balance})
}

func (h *LedgerHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	user := h.householdUser(w, r)
	if user == nil {
		return
	}

	txns, err := h.ledgerStore.History(user.HouseholdID, user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get transactions"})
		return
	}
	if txns == nil {
		txns = []model.PointTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *LedgerHandler) HouseholdBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledgerStore.HouseholdBalances(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get balances"})
		return
	}
	if balances == nil {
		balances = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

// Reconcile cross-checks approved tasks against ledger credits. An empty
// issue list means the books are consistent.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	issues, err := h.ledgerStore.Reconcile(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reconcile"})
		return
	}
	if issues == nil {
		issues = []store.ReconcileIssue{}
	}
	writeJSON(w, http.StatusOK, issues)
}
