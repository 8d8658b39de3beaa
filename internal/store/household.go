package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.ContributionRate, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const householdCols = `id, name, contribution_rate, created_at, updated_at`

// starterTemplates are seeded into each new household so rules have
// something to bind to from day one.
var starterTemplates = []struct {
	name     string
	category string
	points   int
}{
	{"Wash dishes", "kitchen", 2},
	{"Take out trash", "cleaning", 1},
	{"Vacuum living room", "cleaning", 3},
	{"Mow the lawn", "yard", 5},
}

// Create inserts a household, its first admin user, and the starter task
// templates in a single transaction.
func (s *HouseholdStore) Create(name, ownerEmail, ownerName string) (*model.Household, *model.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO households (name) VALUES (?)`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("insert household: %w", err)
	}
	householdID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	result, err = tx.Exec(
		`INSERT INTO users (household_id, email, name, role) VALUES (?, ?, ?, 'admin')`,
		householdID, ownerEmail, ownerName,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert owner: %w", err)
	}
	ownerID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, t := range starterTemplates {
		points := t.points
		if _, err := insertTemplateTx(tx, householdID, t.name, t.category, &points, ""); err != nil {
			return nil, nil, fmt.Errorf("seed template %q: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	household, err := s.GetByID(householdID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := NewUserStore(s.db).GetByID(ownerID)
	if err != nil {
		return nil, nil, err
	}
	return household, owner, nil
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// SetContributionRate adjusts how many qualifying actions earn one bonus
// point. Takes effect on the next recorded contribution.
func (s *HouseholdStore) SetContributionRate(id int64, rate int) (*model.Household, error) {
	_, err := s.db.Exec(
		`UPDATE households SET contribution_rate = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		rate, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set contribution rate: %w", err)
	}
	return s.GetByID(id)
}
