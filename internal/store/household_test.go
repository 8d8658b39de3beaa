package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/tmkelly/choreboard/internal/database"
)

func setupHouseholdTestDB(t *testing.T) (*sql.DB, *HouseholdStore) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "household.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, NewHouseholdStore(db)
}

func TestHouseholdCreateSeeds(t *testing.T) {
	db, hs := setupHouseholdTestDB(t)

	household, owner, err := hs.Create("Maple Street", "dana@example.com", "Dana")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if household.Name != "Maple Street" {
		t.Errorf("name = %q, want %q", household.Name, "Maple Street")
	}
	if household.ContributionRate != 10 {
		t.Errorf("contribution_rate = %d, want 10", household.ContributionRate)
	}
	if owner.Role != "admin" {
		t.Errorf("owner role = %q, want %q", owner.Role, "admin")
	}
	if owner.HouseholdID != household.ID {
		t.Errorf("owner household_id = %d, want %d", owner.HouseholdID, household.ID)
	}
	if owner.PendingContributionCount != 0 {
		t.Errorf("pending_contribution_count = %d, want 0", owner.PendingContributionCount)
	}

	templates, err := NewTemplateStore(db).List(household.ID)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(templates) != len(starterTemplates) {
		t.Errorf("expected %d starter templates, got %d", len(starterTemplates), len(templates))
	}
}

func TestHouseholdSetContributionRate(t *testing.T) {
	_, hs := setupHouseholdTestDB(t)

	household, _, err := hs.Create("Rate House", "rae@example.com", "Rae")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	updated, err := hs.SetContributionRate(household.ID, 5)
	if err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if updated.ContributionRate != 5 {
		t.Errorf("contribution_rate = %d, want 5", updated.ContributionRate)
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	_, hs := setupHouseholdTestDB(t)

	got, err := hs.GetByID(9999)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent household")
	}
}
