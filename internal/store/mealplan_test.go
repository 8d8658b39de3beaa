package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/tmkelly/choreboard/internal/database"
	"github.com/tmkelly/choreboard/internal/model"
)

func setupMealPlanTestDB(t *testing.T) (*sql.DB, *MealPlanStore, *model.User, *model.User) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "mealplan.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, alice, err := NewHouseholdStore(db).Create("Test House", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	bob, err := NewUserStore(db).Create(alice.HouseholdID, "bob@example.com", "Bob", "member")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return db, NewMealPlanStore(db), alice, bob
}

func TestMealPlanUpsertDay(t *testing.T) {
	_, ms, alice, bob := setupMealPlanTestDB(t)
	h := alice.HouseholdID

	day, err := ms.UpsertDay(h, "2026-03-02", nil)
	if err != nil {
		t.Fatalf("upsert day: %v", err)
	}
	if day.DayDate != "2026-03-02" {
		t.Errorf("day_date = %q, want %q", day.DayDate, "2026-03-02")
	}
	if day.AssigneeID != nil {
		t.Errorf("assignee_id = %v, want nil", day.AssigneeID)
	}

	// Upserting the same date updates in place.
	again, err := ms.UpsertDay(h, "2026-03-02", &bob.ID)
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.ID != day.ID {
		t.Errorf("upsert created new day %d, want %d", again.ID, day.ID)
	}
	if again.AssigneeID == nil || *again.AssigneeID != bob.ID {
		t.Errorf("assignee_id = %v, want %d", again.AssigneeID, bob.ID)
	}

	got, err := ms.GetDayByDate(h, "2026-03-02")
	if err != nil {
		t.Fatalf("get day by date: %v", err)
	}
	if got == nil || got.ID != day.ID {
		t.Errorf("get by date = %v, want day %d", got, day.ID)
	}
}

func TestMealPlanDayScoping(t *testing.T) {
	_, ms, alice, _ := setupMealPlanTestDB(t)
	h := alice.HouseholdID

	day, err := ms.UpsertDay(h, "2026-03-02", nil)
	if err != nil {
		t.Fatalf("upsert day: %v", err)
	}

	got, err := ms.GetDayByID(h+1, day.ID)
	if err != nil {
		t.Fatalf("get day: %v", err)
	}
	if got != nil {
		t.Error("expected nil for another household's day")
	}

	got, err = ms.GetDayByDate(h, "2026-03-03")
	if err != nil {
		t.Fatalf("get day by date: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unplanned date")
	}
}

func TestMealPlanReplaceSelections(t *testing.T) {
	_, ms, alice, _ := setupMealPlanTestDB(t)
	h := alice.HouseholdID

	day, err := ms.UpsertDay(h, "2026-03-02", nil)
	if err != nil {
		t.Fatalf("upsert day: %v", err)
	}

	lunch, err := ms.ReplaceSelections(day.ID, model.SlotLunch, []string{"Tacos", "Salad"})
	if err != nil {
		t.Fatalf("set lunch: %v", err)
	}
	if len(lunch) != 2 || lunch[0].DishName != "Tacos" || lunch[1].DishName != "Salad" {
		t.Fatalf("lunch selections = %v, want [Tacos, Salad]", lunch)
	}
	if _, err := ms.ReplaceSelections(day.ID, model.SlotDinner, []string{"Stew"}); err != nil {
		t.Fatalf("set dinner: %v", err)
	}

	// Replacing swaps the whole slot and leaves the other slot alone.
	lunch, err = ms.ReplaceSelections(day.ID, model.SlotLunch, []string{"Soup"})
	if err != nil {
		t.Fatalf("replace lunch: %v", err)
	}
	if len(lunch) != 1 || lunch[0].DishName != "Soup" {
		t.Fatalf("lunch selections = %v, want [Soup]", lunch)
	}
	dinner, err := ms.SelectionsForSlot(day.ID, model.SlotDinner)
	if err != nil {
		t.Fatalf("get dinner: %v", err)
	}
	if len(dinner) != 1 || dinner[0].DishName != "Stew" {
		t.Fatalf("dinner selections = %v, want [Stew]", dinner)
	}

	// An empty list clears the slot.
	lunch, err = ms.ReplaceSelections(day.ID, model.SlotLunch, nil)
	if err != nil {
		t.Fatalf("clear lunch: %v", err)
	}
	if len(lunch) != 0 {
		t.Errorf("lunch selections = %v, want empty", lunch)
	}

	all, err := ms.SelectionsForDay(day.ID)
	if err != nil {
		t.Fatalf("selections for day: %v", err)
	}
	if len(all) != 1 || all[0].Slot != model.SlotDinner {
		t.Errorf("day selections = %v, want just dinner", all)
	}
}
